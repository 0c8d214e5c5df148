// Package srs implements the fixed-ladder spaced repetition schedule.
package srs

import (
	"fmt"
	"time"
)

// Interval ladder in minutes: 1d, 1w, 1m, 3m, 6m, 12m, 18m, 24m, 36m.
var intervalMinutes = [...]int{
	1440,
	10080,
	43200,
	129600,
	262800,
	525600,
	788400,
	1051200,
	1576800,
}

var periodLabels = [...]string{
	"1_day",
	"1_week",
	"1_month",
	"3_months",
	"6_months",
	"12_months",
	"18_months",
	"24_months",
	"36_months",
}

// DueNowLabel is the delay label meaning "review immediately".
const DueNowLabel = "now"

// MaxStep is the last index of the ladder.
const MaxStep = len(intervalMinutes) - 1

// Steps returns the number of rungs in the ladder.
func Steps() int {
	return len(intervalMinutes)
}

// Clamp limits step to [0, MaxStep].
func Clamp(step int) int {
	switch {
	case step < 0:
		return 0
	case step > MaxStep:
		return MaxStep
	default:
		return step
	}
}

// IntervalFor returns the interval of the (clamped) step.
func IntervalFor(step int) time.Duration {
	return time.Duration(intervalMinutes[Clamp(step)]) * time.Minute
}

// LabelFor returns the period label of the (clamped) step.
func LabelFor(step int) string {
	return periodLabels[Clamp(step)]
}

// Labels returns the period labels in ladder order.
func Labels() []string {
	out := make([]string, len(periodLabels))
	copy(out, periodLabels[:])
	return out
}

// DelayLabels returns the labels a user can pick when moving a card by hand.
func DelayLabels() []string {
	return append([]string{DueNowLabel}, Labels()...)
}

// StepForDelay converts a delay label to a step. Unknown labels fall back to
// "due now" on step 0.
func StepForDelay(label string) (step int, dueNow bool) {
	if label == DueNowLabel {
		return 0, true
	}
	for i, l := range periodLabels {
		if l == label {
			return i, false
		}
	}
	return 0, true
}

// DisplayInterval renders an interval the way the review screen shows it.
func DisplayInterval(d time.Duration) string {
	minutes := int(d / time.Minute)
	switch {
	case minutes < 1440:
		return plural(minutes/60, "hour")
	case minutes < 10080:
		return plural(minutes/1440, "day")
	case minutes < 43200:
		return plural(minutes/10080, "week")
	case minutes < 525600:
		return plural(minutes/43200, "month")
	default:
		return fmt.Sprintf("%d months", minutes/43200)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
