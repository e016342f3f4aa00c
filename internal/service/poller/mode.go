package poller

import (
	"fmt"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
)

// WindowStrategy decides where a run's window starts.
type WindowStrategy int

const (
	// WindowFromWatermark starts at the primary watermark minus the
	// lookback buffer.
	WindowFromWatermark WindowStrategy = iota
	// WindowFixedLookback starts a fixed duration before now.
	WindowFixedLookback
)

// WatermarkPolicy decides whether a successful run advances the watermark.
type WatermarkPolicy int

const (
	WatermarkAdvance WatermarkPolicy = iota
	WatermarkIgnore
)

// Mode parameterizes a Poller invocation.
type Mode struct {
	Variant   domain.PollVariant
	Window    WindowStrategy
	Lookback  time.Duration // WindowFixedLookback only
	Watermark WatermarkPolicy
	// Scheduled runs honour the polling_enabled switch; manual runs do not.
	Scheduled bool
}

func Regular() Mode {
	return Mode{Variant: domain.PollRegular, Window: WindowFromWatermark, Watermark: WatermarkAdvance, Scheduled: true}
}

func Manual() Mode {
	return Mode{Variant: domain.PollManual, Window: WindowFromWatermark, Watermark: WatermarkAdvance}
}

// Catchup re-covers the last lookback without reading or moving the
// watermark.
func Catchup(lookback time.Duration) Mode {
	return Mode{Variant: domain.PollCatchup, Window: WindowFixedLookback, Lookback: lookback, Watermark: WatermarkIgnore, Scheduled: true}
}

// ModeFor returns the Mode for a variant name.
func ModeFor(v domain.PollVariant, catchupLookback time.Duration) (Mode, error) {
	switch v {
	case domain.PollRegular:
		return Regular(), nil
	case domain.PollManual:
		return Manual(), nil
	case domain.PollCatchup:
		return Catchup(catchupLookback), nil
	}
	return Mode{}, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
}
