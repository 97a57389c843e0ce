package process

import "time"

// backoff produces the delay sequence applied between restart attempts:
// each restart waits the current delay, then the delay is scaled by the
// multiplier up to a cap.
type backoff struct {
	initial    time.Duration
	multiplier float64
	cap        time.Duration
	current    time.Duration
}

func newBackoff(initial time.Duration, multiplier float64, cap time.Duration) *backoff {
	if multiplier < 1 {
		multiplier = 1
	}
	if cap < initial {
		cap = initial
	}
	return &backoff{
		initial:    initial,
		multiplier: multiplier,
		cap:        cap,
		current:    initial,
	}
}

// next returns the delay to apply now and advances the sequence.
func (b *backoff) next() time.Duration {
	d := b.current
	scaled := time.Duration(float64(b.current) * b.multiplier)
	if scaled > b.cap {
		scaled = b.cap
	}
	b.current = scaled
	return d
}

// peek returns the delay the next restart would wait, without advancing.
func (b *backoff) peek() time.Duration {
	return b.current
}

// reset returns the sequence to its initial delay. Called after a run
// long enough to count as stable.
func (b *backoff) reset() {
	b.current = b.initial
}
