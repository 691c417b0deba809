package plot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalcIntervalShortCapture(t *testing.T) {
	iv := CalcInterval(2*time.Hour, 0)
	require.Equal(t, 60*time.Second, iv) // d=2 -> 2*30s
}

func TestCalcIntervalCapsAtTenMinutesWithinADay(t *testing.T) {
	iv := CalcInterval(24*time.Hour, 0)
	require.Equal(t, 600*time.Second, iv) // d=24 -> 24*30s=720s, capped at 600s
}

func TestCalcIntervalWeekRange(t *testing.T) {
	iv := CalcInterval(5*24*time.Hour, 0)
	require.Equal(t, 5*600*time.Second, iv)
}

func TestCalcIntervalMonthRange(t *testing.T) {
	iv := CalcInterval(20*24*time.Hour, 0)
	require.Equal(t, 4*time.Hour, iv)
}

func TestCalcIntervalDoublesForLargeMaxInterval(t *testing.T) {
	// a 2-hour capture normally yields 60s, but if consecutive records
	// were 500s apart, the interval must grow to cover that gap.
	iv := CalcInterval(2*time.Hour, 500*time.Second)
	require.GreaterOrEqual(t, iv, time.Duration(500*time.Second)*3/4)
	require.Equal(t, time.Duration(0), iv%(60*time.Second))
}
