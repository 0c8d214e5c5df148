package srs

import "time"

// State is a card's position on the ladder.
type State struct {
	Step           int
	Interval       time.Duration
	DueAt          time.Time
	ReviewCount    int
	LastReviewedAt *time.Time
}

// Initial returns the state of a freshly created card: step 0, due immediately.
func Initial(now time.Time) State {
	return State{
		Step:     0,
		Interval: IntervalFor(0),
		DueAt:    now,
	}
}

// IsDue reports whether the card should be reviewed at now.
func (s State) IsDue(now time.Time) bool {
	return !now.Before(s.DueAt)
}

// Transition computes the state after a review at now.
//
//	Forgot: back to step 0.
//	Hard:   stay on the current step.
//	Good:   one step up, capped at MaxStep.
//
// Any other outcome value is handled like Hard.
func Transition(cur State, outcome Outcome, now time.Time) State {
	step := Clamp(cur.Step)
	switch outcome {
	case Forgot:
		step = 0
	case Good:
		step = Clamp(step + 1)
	}

	interval := IntervalFor(step)
	reviewedAt := now
	return State{
		Step:           step,
		Interval:       interval,
		DueAt:          now.Add(interval),
		ReviewCount:    cur.ReviewCount + 1,
		LastReviewedAt: &reviewedAt,
	}
}

// AtStep moves a card to step without counting a review. With dueNow the card
// becomes due at now, otherwise it is scheduled one interval of step ahead.
func AtStep(cur State, step int, dueNow bool, now time.Time) State {
	step = Clamp(step)
	next := cur
	next.Step = step
	next.Interval = IntervalFor(step)
	if dueNow {
		next.DueAt = now
	} else {
		next.DueAt = now.Add(next.Interval)
	}
	return next
}
