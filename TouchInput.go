package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultIdleInterval = time.Millisecond

// Remap selects which positional axes are mirrored.
type Remap struct {
	InvertX bool
	InvertY bool
}

// RelayStats counts what the relay loop did.
type RelayStats struct {
	Relayed     uint64
	Transformed uint64
	Dropped     uint64
}

// Relay copies input events from the touch device to the uinput device,
// mirroring positional values in transit.
type Relay struct {
	src   io.Reader
	dst   io.Writer
	x     AxisRange
	y     AxisRange
	remap Remap
	idle  time.Duration
	log   *logrus.Logger
}

func newRelay(b *Bridge, remap Remap, idle time.Duration, log *logrus.Logger) *Relay {
	if idle <= 0 {
		idle = defaultIdleInterval
	}
	return &Relay{
		src:   b.Source,
		dst:   b.Virtual,
		x:     b.X,
		y:     b.Y,
		remap: remap,
		idle:  idle,
		log:   log,
	}
}

// invertAxis mirrors v inside rng. Values outside rng are not clamped.
func invertAxis(v int32, rng AxisRange) int32 {
	return rng.Max - (v - rng.Min)
}

// Transform returns ev with its value mirrored when it is a positional
// axis event whose inversion is enabled. Only Value is ever changed.
func (r *Relay) Transform(ev InputEvent) (InputEvent, bool) {
	if ev.Type != evAbs {
		return ev, false
	}

	switch {
	case ev.Code == absMtPositionY && r.remap.InvertY:
		ev.Value = invertAxis(ev.Value, r.y)
		return ev, true
	case ev.Code == absMtPositionX && r.remap.InvertX:
		ev.Value = invertAxis(ev.Value, r.x)
		return ev, true
	}

	return ev, false
}

// Run relays events until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) RelayStats {
	var stats RelayStats

	buf := make([]byte, eventSize)
	timer := time.NewTimer(r.idle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return stats
		default:
		}

		n, _ := r.src.Read(buf)
		if n != eventSize {
			// no data; sleep a bit
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(r.idle)
			select {
			case <-ctx.Done():
				return stats
			case <-timer.C:
			}
			continue
		}

		if err := r.relayRecord(buf, &stats); err != nil {
			stats.Dropped++
			r.log.WithError(err).Warn("write uinput failed")
			continue
		}
		stats.Relayed++
	}
}

func (r *Relay) relayRecord(buf []byte, stats *RelayStats) error {
	ev, err := bytesToInputEvent(buf)
	if err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	out := buf
	if oev, changed := r.Transform(ev); changed {
		stats.Transformed++
		if out, err = inputEventToBytes(oev); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}

	w, err := r.dst.Write(out)
	if err != nil {
		return err
	}
	if w != len(out) {
		return fmt.Errorf("short write %d/%d", w, len(out))
	}
	return nil
}
