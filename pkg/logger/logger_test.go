package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelInfo})

	l.With(Component("tracker")).Info("lesson completed", StudentID("s1"), Err(errors.New("boom")))
	l.Debug("dropped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "lesson completed", entry.Message)
	assert.Equal(t, "tracker", entry.Fields["component"])
	assert.Equal(t, "s1", entry.Fields["student_id"])
	assert.Equal(t, "boom", entry.Fields["error"])
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelDebug, Format: ParseFormat("TEXT")})

	l.Warn("slow recompute", EnrollmentID("e1"), CourseID("c1"))

	out := buf.String()
	assert.Contains(t, out, "WARN  slow recompute")
	assert.Contains(t, out, "course_id=c1 enrollment_id=e1")
}

func TestContextRoundTrip(t *testing.T) {
	l := Nop()
	ctx := WithContext(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}
