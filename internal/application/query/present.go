package query

import (
	"github.com/shopspring/decimal"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/certificate"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/progress"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/streak"
)

// PresentEnrollment renders an enrollment snapshot. generator may be nil,
// in which case certificate URLs are omitted.
func PresentEnrollment(e *enrollment.Enrollment, generator *certificate.Generator) *CourseProgressDTO {
	state := e.State()
	dto := &CourseProgressDTO{
		EnrollmentID:       string(e.ID),
		StudentID:          string(e.StudentID),
		CourseID:           string(e.CourseID),
		Status:             string(state),
		StatusCode:         state.Code(),
		ProgressPercentage: e.ProgressPercentage.StringFixed(enrollment.PercentagePrecision),
		CompletedLessons:   e.CompletedLessons,
		TotalLessons:       e.TotalLessons,
		TimeSpentMinutes:   e.TimeSpentMinutes,
		AverageQuizScore:   roundScore(e.AverageQuizScore),
		EnrolledAt:         e.EnrolledAt,
		CompletedAt:        e.CompletedAt,
		LastAccessedAt:     e.LastAccessedAt,
	}

	if e.CertificateIssued && e.CertificateRef != nil {
		cert := &CertificateDTO{Reference: *e.CertificateRef}
		if generator != nil {
			cert.URL = generator.URL(cert.Reference)
		}
		if e.CertificateIssuedAt != nil {
			cert.IssuedAt = *e.CertificateIssuedAt
		}
		dto.Certificate = cert
	}
	return dto
}

// PresentLesson renders one stored lesson row.
func PresentLesson(lp *progress.LessonProgress) LessonProgressDTO {
	return LessonProgressDTO{
		LessonID:         string(lp.LessonID),
		Status:           string(lp.Status),
		StatusCode:       lp.Status.Code(),
		TimeSpentMinutes: lp.TimeSpentMinutes,
		QuizScore:        lp.QuizScore,
		CompletedAt:      lp.CompletedAt,
	}
}

// PresentStreak renders a streak as seen on the given day.
func PresentStreak(s *streak.Streak, today shared.Date) *StreakDTO {
	return &StreakDTO{
		StudentID:      string(s.StudentID),
		CurrentStreak:  s.CurrentAsOf(today),
		BestStreak:     s.Best,
		LastActiveDate: s.LastCreditedDate.String(),
		ActiveToday:    s.LastCreditedDate.Equal(today),
	}
}

// roundScore rounds a score to two places for presentation.
func roundScore(score *float64) *float64 {
	if score == nil {
		return nil
	}
	v := decimal.NewFromFloat(*score).Round(2).InexactFloat64()
	return &v
}

// money renders a currency amount with two decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
