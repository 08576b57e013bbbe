package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// Summary is an instructor's revenue and engagement rollup. It holds raw sums
// so rounding happens only when the view is presented.
type Summary struct {
	InstructorID         shared.InstructorID `json:"instructor_id"`
	Revenue              decimal.Decimal     `json:"revenue"`
	PaymentCount         int                 `json:"payment_count"`
	DistinctStudents     int                 `json:"distinct_students"`
	TotalEnrollments     int                 `json:"total_enrollments"`
	CompletedEnrollments int                 `json:"completed_enrollments"`
	ReviewCount          int                 `json:"review_count"`
	RatingSum            int                 `json:"rating_sum"`
}

// Summarize folds the facts of one instructor. Missing facts yield zeros.
func Summarize(instructorID shared.InstructorID, payments []Payment, enrollments []EnrollmentFact, ratings []Rating) *Summary {
	s := &Summary{
		InstructorID: instructorID,
		Revenue:      decimal.Zero,
	}

	for _, p := range payments {
		s.Revenue = s.Revenue.Add(p.Amount)
		s.PaymentCount++
	}

	students := make(map[shared.StudentID]struct{}, len(enrollments))
	for _, e := range enrollments {
		students[e.StudentID] = struct{}{}
		s.TotalEnrollments++
		if e.Completed {
			s.CompletedEnrollments++
		}
	}
	s.DistinctStudents = len(students)

	for _, r := range ratings {
		s.RatingSum += r.Value
		s.ReviewCount++
	}
	return s
}

// AverageRating is the mean rating, 0 without reviews. Unrounded.
func (s *Summary) AverageRating() decimal.Decimal {
	if s.ReviewCount == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.RatingSum)).Div(decimal.NewFromInt(int64(s.ReviewCount)))
}

// CompletionRate is completed/total as a percentage, 0 without enrollments.
// Unrounded.
func (s *Summary) CompletionRate() decimal.Decimal {
	if s.TotalEnrollments == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.CompletedEnrollments)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(s.TotalEnrollments)))
}

// Present rounds a derived metric for display.
func Present(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
