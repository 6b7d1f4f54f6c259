// Package timing tracks named phase durations during a reconciliation run.
package timing

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Timer records how long each phase of a run took.
type Timer struct {
	start  time.Time
	last   time.Time
	phases []Phase
}

// Phase is one completed step with its duration.
type Phase struct {
	Name     string
	Duration time.Duration
}

// New creates a Timer starting from now.
func New() *Timer {
	now := time.Now()
	return &Timer{start: now, last: now}
}

// Mark closes the current phase under the given name. The duration covers
// the time since the previous mark, or since creation for the first one.
func (t *Timer) Mark(name string) {
	now := time.Now()
	t.phases = append(t.phases, Phase{Name: name, Duration: now.Sub(t.last)})
	t.last = now
}

// Total returns the elapsed time since the timer was created.
func (t *Timer) Total() time.Duration {
	return time.Since(t.start)
}

// Phases returns all recorded phases in order.
func (t *Timer) Phases() []Phase {
	return t.phases
}

// Log emits one debug event per phase plus a total.
func (t *Timer) Log() {
	for _, p := range t.phases {
		log.Debug().Str("phase", p.Name).Str("took", FormatDuration(p.Duration)).Msg("timing")
	}
	log.Debug().Str("took", FormatDuration(t.Total())).Msg("timing total")
}

// FormatDuration renders a duration at a resolution that reads well for
// sub-second and multi-second phases alike.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
