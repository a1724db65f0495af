package analytics

import (
	"fmt"

	"github.com/abhisek/quizflow/internal/telemetry"
)

// Safe runs fn into a fresh record. When fn errors, panics, or returns nil,
// the computed record is discarded and a fallback carrying only identifiers
// and isCorrect from the runtime result is returned together with the cause.
// The returned record is never nil.
func Safe(fn Func, q Question, logs []telemetry.Entry, sc SessionContext, isCorrect bool) (rec *Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = Fallback(q, sc, isCorrect)
			err = fmt.Errorf("analytics for %q panicked: %v", q.TypeID, r)
		}
	}()

	if fn == nil {
		return Fallback(q, sc, isCorrect), fmt.Errorf("no analytics function for %q", q.TypeID)
	}
	out, err := fn(q, logs, sc)
	if err != nil {
		return Fallback(q, sc, isCorrect), fmt.Errorf("analytics for %q: %w", q.TypeID, err)
	}
	if out == nil {
		return Fallback(q, sc, isCorrect), fmt.Errorf("analytics for %q returned no record", q.TypeID)
	}
	return out, nil
}

// Fallback builds the minimal record used when synthesis fails.
func Fallback(q Question, sc SessionContext, isCorrect bool) *Record {
	return &Record{
		RecordVersion: RecordVersion,
		QuestionID:    q.ID,
		TypeID:        q.TypeID,
		TypeVersion:   q.TypeVersion,
		UserID:        sc.UserID,
		SessionID:     sc.SessionID,
		AtomID:        q.AtomID,
		IsCorrect:     isCorrect,
		Fallback:      true,
	}
}
