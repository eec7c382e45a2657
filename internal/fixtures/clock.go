package fixtures

import (
	"context"
	"time"

	"github.com/tilinna/clock"
)

// NextStep advances the mock clock until it moves, or the context is
// canceled (which typically means a wall-time timeout).  Useful when the
// consumer of mock time lives in a goroutine whose readiness cannot be
// observed directly.
func NextStep(ctx context.Context, clck *clock.Mock) {
	for _, d := clck.AddNext(); d == 0 && ctx.Err() == nil; _, d = clck.AddNext() {
		time.Sleep(1) // Allows the system to actually idle, runtime.Gosched() does not.
	}
}
