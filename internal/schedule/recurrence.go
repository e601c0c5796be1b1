package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// Recurrence computes firing instants for a recurring trigger.
// Implementations return the zero time when no further firing exists.
type Recurrence interface {
	// Next returns the earliest firing instant strictly after the given time.
	Next(after time.Time) time.Time
}

// everyMinutesPattern matches the "*/N * * * *" form handled natively.
var everyMinutesPattern = regexp.MustCompile(`^\*/(\d+) \* \* \* \*$`)

// ParseRecurrence parses a recurrence expression into a Recurrence.
//
// The "*/N * * * *" form gets a native evaluator that advances to the next
// minute boundary whose minute-of-hour is a multiple of N, seconds truncated.
// Every other expression is handed to the standard cron parser. Invalid
// expressions are rejected here, at creation time, rather than being
// silently treated as never firing.
func ParseRecurrence(expr string) (Recurrence, error) {
	if expr == "" {
		return nil, fmt.Errorf("recurrence expression is empty")
	}

	if m := everyMinutesPattern.FindStringSubmatch(expr); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > 59 {
			return nil, fmt.Errorf("invalid minute interval in %q", expr)
		}
		return everyMinutes{n: n}, nil
	}

	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence expression %q: %w", expr, err)
	}
	return cronRecurrence{sched: sched}, nil
}

// everyMinutes fires at every minute-of-hour that is a multiple of n.
type everyMinutes struct {
	n int
}

func (e everyMinutes) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute)
	for i := 0; i < 60; i++ {
		t = t.Add(time.Minute)
		if t.Minute()%e.n == 0 {
			return t
		}
	}
	// Unreachable for 1 <= n <= 59.
	return time.Time{}
}

// cronRecurrence wraps a parsed standard cron schedule.
type cronRecurrence struct {
	sched cron.Schedule
}

func (c cronRecurrence) Next(after time.Time) time.Time {
	return c.sched.Next(after)
}
