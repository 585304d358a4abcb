package absence

import (
	"time"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
)

// DefaultDeadlineDays is how long staff have to adjudicate a record before it counts as unexcused.
const DefaultDeadlineDays = 7

// Classifier derives the excuse state of a record relative to a reference instant.
//
//	rawStatus                 condition           state
//	excused / certificate     -                   excused
//	unexcused / rejected      -                   unexcused
//	empty                     deadline elapsed    unexcused (overdue)
//	empty                     within deadline     open
type Classifier struct {
	deadline time.Duration
}

func NewClassifier(deadlineDays int) Classifier {
	if deadlineDays <= 0 {
		deadlineDays = DefaultDeadlineDays
	}
	return Classifier{deadline: time.Duration(deadlineDays) * 24 * time.Hour}
}

func (c Classifier) Deadline() time.Duration {
	return c.deadline
}

// Classify applies the decision table. It is the only place where the overdue rule lives.
func (c Classifier) Classify(rec absence.Record, now time.Time) absence.ExcuseState {
	switch {
	case rec.RawStatus.IsExcused():
		return absence.StateExcused
	case rec.RawStatus.IsUnexcused():
		return absence.StateUnexcused
	case c.IsOverdue(rec, now):
		return absence.StateUnexcused
	default:
		return absence.StateOpen
	}
}

// IsOverdue reports whether the full deadline has elapsed since the absence date.
func (c Classifier) IsOverdue(rec absence.Record, now time.Time) bool {
	return now.Sub(rec.Date) >= c.deadline
}
