package engine

import "time"

// startTimer returns a stop function that, when called, feeds the
// elapsed duration since startTimer was called into record.
func startTimer(record func(time.Duration)) func() {
	start := time.Now()
	return func() {
		record(time.Since(start))
	}
}
