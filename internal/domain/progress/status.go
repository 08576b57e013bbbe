package progress

import (
	"strconv"
	"strings"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the state of one student on one lesson.
type Status string

const (
	// StatusNotStarted - the lesson was opened but no work is recorded.
	StatusNotStarted Status = "not_started"
	// StatusInProgress - the student is working through the lesson.
	StatusInProgress Status = "in_progress"
	// StatusCompleted - terminal; the lesson counts toward enrollment progress.
	StatusCompleted Status = "completed"
)

// statusInfo is one row of the stable mapping table.
type statusInfo struct {
	code int // wire code used by legacy clients, never reassigned
	rank int // ordering for monotonic transitions
}

// statusTable maps every status to its stable numeric code. New statuses get a
// new code; existing codes never move.
var statusTable = map[Status]statusInfo{
	StatusNotStarted: {code: 0, rank: 0},
	StatusInProgress: {code: 1, rank: 1},
	StatusCompleted:  {code: 2, rank: 2},
}

// IsValid checks that the status is part of the mapping table.
func (s Status) IsValid() bool {
	_, ok := statusTable[s]
	return ok
}

// Code returns the stable numeric code, or -1 for an unknown status.
func (s Status) Code() int {
	if info, ok := statusTable[s]; ok {
		return info.code
	}
	return -1
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// IsCompleted reports whether the status is terminal.
func (s Status) IsCompleted() bool {
	return s == StatusCompleted
}

// Advances reports whether moving from s to next is forward progress.
func (s Status) Advances(next Status) bool {
	return statusTable[next].rank > statusTable[s].rank
}

// StatusFromCode resolves a numeric code through the mapping table.
func StatusFromCode(code int) (Status, error) {
	for status, info := range statusTable {
		if info.code == code {
			return status, nil
		}
	}
	return "", shared.ErrInvalidStatus
}

// ParseStatus accepts the canonical name, hyphenated or camel-cased variants,
// or a numeric code.
func ParseStatus(raw string) (Status, error) {
	v := strings.TrimSpace(raw)
	if code, err := strconv.Atoi(v); err == nil {
		return StatusFromCode(code)
	}

	v = strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(v))
	switch v {
	case "notstarted":
		v = string(StatusNotStarted)
	case "inprogress":
		v = string(StatusInProgress)
	}

	s := Status(v)
	if !s.IsValid() {
		return "", shared.ErrInvalidStatus
	}
	return s, nil
}
