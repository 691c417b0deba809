// Package plot implements the time-slot plotting backend (spec §4.9):
// given a capture's total duration, it picks a human-friendly sample
// interval, then folds each aggregation pass's address hash into one
// counter per output-bound odflow per time slot.
package plot

import (
	"math"
	"time"
)

// CalcInterval picks a plotting interval for a capture spanning
// duration, following the original guideline table (grounded on
// agurim_plot.c:calc_interval):
//
//	duration   interval   points
//	1 year     1 day      365
//	1 month    4 hours    180
//	1 week     60 min     168
//	1 day      10 min     144
//	1 hour     30 sec     120
//
// maxInterval is the largest interval actually observed between
// consecutive input timestamps; if the computed interval undershoots
// 3/4 of it, it is doubled until it catches up (agurim.c:plot_init).
func CalcInterval(duration, maxInterval time.Duration) time.Duration {
	interval := rawInterval(duration)
	for interval < maxInterval*3/4 {
		interval *= 2
	}
	return interval
}

func rawInterval(duration time.Duration) time.Duration {
	hours := duration.Hours()

	d := int(math.Ceil(hours / 1))
	if d <= 24 {
		iv := time.Duration(d) * 30 * time.Second
		return minDuration(iv, 600*time.Second)
	}

	d = int(math.Ceil(hours / 24))
	if d <= 7 {
		iv := time.Duration(d) * 600 * time.Second
		return minDuration(iv, time.Hour)
	}
	if d <= 31 {
		return 4 * time.Hour
	}

	d = int(math.Ceil(hours / 24 / 31))
	if d <= 12 {
		iv := time.Duration(d) * 4 * time.Hour
		return minDuration(iv, 24*time.Hour)
	}

	// longer than a year: one day per elapsed year.
	d = int(math.Ceil(hours / 24 / 365))
	return time.Duration(d) * 24 * time.Hour
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
