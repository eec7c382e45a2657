// Package util holds small shared helpers.
package util

import (
	"context"
	"time"

	"github.com/tilinna/clock"
)

// AlignedTicker fires on interval boundaries aligned to the wall clock, so
// independent processes flush in the same slots.  Instead of firing at:
//
// [T+1*interval, T+2*interval, T+3*interval, ...]
//
// it fires at:
//
// r = roundup(T-offset, interval)+offset
// [r, r+1*interval, r+2*interval, ...]
//
// The time.Time sent to the channel is the aligned boundary, not the actual
// time of firing.  The ticker stops when the context is done.
type AlignedTicker struct {
	C <-chan time.Time
}

// NewAlignedTicker creates an AlignedTicker.  offset shifts every boundary
// forward, which spreads the load of many aligned processes over the
// interval.
func NewAlignedTicker(ctx context.Context, interval, offset time.Duration) *AlignedTicker {
	ch := make(chan time.Time, 1)
	go tickAligned(ctx, ch, interval, offset)
	return &AlignedTicker{C: ch}
}

func tickAligned(ctx context.Context, ch chan time.Time, interval, offset time.Duration) {
	clck := clock.FromContext(ctx)
	now := clck.Now()
	first := now.Add(-offset).Truncate(interval).Add(interval + offset)

	tmr := clck.NewTimer(first.Sub(now))
	select {
	case <-ctx.Done():
		tmr.Stop()
		return
	case now = <-tmr.C:
	}

	// Start the repeating ticker as soon as possible to stay on the grid.
	tckr := clck.NewTicker(interval)
	defer tckr.Stop()
	for {
		select {
		case ch <- alignTime(now, interval, offset):
		default:
		}
		select {
		case <-ctx.Done():
			return
		case now = <-tckr.C:
		}
	}
}

func alignTime(t time.Time, interval, offset time.Duration) time.Time {
	return t.Add(-offset).Truncate(interval).Add(offset)
}
