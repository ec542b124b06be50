package observatory

import (
	"fmt"
	"time"
)

// Field is a sky target the scheduler may choose.
type Field struct {
	Name     string  `json:"name"`
	RA       float64 `json:"ra"`  // degrees
	Dec      float64 `json:"dec"` // degrees
	Priority float64 `json:"priority"`
}

// Observation is one scheduled pointing and its exposure bookkeeping.
type Observation struct {
	ID    string `json:"id"`
	Field Field  `json:"field"`

	ExpTime time.Duration `json:"exp_time"`

	// MinNexp is the minimum number of exposures before the set may finish.
	MinNexp int `json:"min_nexp"`

	// ExpSetSize is the number of exposures per dither set.
	ExpSetSize int `json:"exp_set_size"`

	// CurrentExpNum counts exposures completed so far.
	CurrentExpNum int `json:"current_exp_num"`

	// FocusRequired asks the controller to autofocus before the next exposure.
	FocusRequired bool `json:"focus_required"`

	SeqTime time.Time `json:"seq_time"`
}

// SetIsFinished reports whether the current exposure set is complete:
// at least MinNexp exposures taken and the count on a set boundary. A
// non-positive ExpSetSize means every exposure is a boundary.
func (o *Observation) SetIsFinished() bool {
	if o.CurrentExpNum < o.MinNexp {
		return false
	}
	if o.ExpSetSize <= 0 {
		return true
	}
	return o.CurrentExpNum%o.ExpSetSize == 0
}

// String implements fmt.Stringer.
func (o *Observation) String() string {
	return fmt.Sprintf("%s[%s %d/%d]", o.ID, o.Field.Name, o.CurrentExpNum, o.MinNexp)
}

// Constraints narrows what the scheduler may return.
type Constraints struct {
	// MinMoonSep is the minimum target to moon separation in degrees.
	MinMoonSep float64 `json:"min_moon_sep"`
}
