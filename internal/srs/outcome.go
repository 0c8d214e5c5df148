package srs

import (
	"encoding"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOutcome is returned when a review rating cannot be parsed.
var ErrInvalidOutcome = errors.New("srs: invalid review outcome")

// Outcome is the user's rating of a review.
type Outcome int

const (
	Forgot Outcome = iota + 1
	Hard
	Good
)

var (
	outcomeNames = [...]string{Forgot: "forgot", Hard: "hard", Good: "good"}

	_ fmt.Stringer             = Outcome(0)
	_ encoding.TextMarshaler   = Outcome(0)
	_ encoding.TextUnmarshaler = (*Outcome)(nil)
)

// ParseOutcome accepts "forgot", "hard" or "good" in any case.
func ParseOutcome(raw string) (Outcome, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for o := Forgot; o <= Good; o++ {
		if outcomeNames[o] == value {
			return o, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOutcome, raw)
}

// IsValid reports whether o is one of the three ratings.
func (o Outcome) IsValid() bool {
	return o >= Forgot && o <= Good
}

func (o Outcome) String() string {
	if o.IsValid() {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	if !o.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOutcome, int(o))
	}
	return []byte(outcomeNames[o]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
