package simulator

import (
	"math"
	"sort"
	"time"

	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/config"
	"github.com/huntsman-telescope/huntsman-core/internal/observatory"
)

// Target is a schedulable field with its exposure plan.
type Target struct {
	Field      observatory.Field
	ExpTime    time.Duration
	MinNexp    int
	ExpSetSize int
}

// Scheduler hands out the highest priority field not yet completed that
// satisfies the moon constraint.
type Scheduler struct {
	targets         []Target
	moonRA, moonDec float64
}

// NewScheduler builds a scheduler from configured fields.
func NewScheduler(fields []config.FieldConfig, moonRA, moonDec float64) *Scheduler {
	targets := make([]Target, 0, len(fields))
	for _, f := range fields {
		targets = append(targets, Target{
			Field: observatory.Field{
				Name:     f.Name,
				RA:       f.RA,
				Dec:      f.Dec,
				Priority: float64(f.Priority),
			},
			ExpTime:    time.Duration(f.ExpTime * float64(time.Second)),
			MinNexp:    f.MinNexp,
			ExpSetSize: f.ExpSetSize,
		})
	}
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Field.Priority > targets[j].Field.Priority
	})
	return &Scheduler{targets: targets, moonRA: moonRA, moonDec: moonDec}
}

// Next returns the best target not in completed.
func (s *Scheduler) Next(c observatory.Constraints, completed map[string]bool) (Target, bool) {
	for _, t := range s.targets {
		if completed[t.Field.Name] {
			continue
		}
		if separation(t.Field.RA, t.Field.Dec, s.moonRA, s.moonDec) < c.MinMoonSep {
			continue
		}
		return t, true
	}
	return Target{}, false
}

// separation returns the angular distance between two points in degrees.
func separation(ra1, dec1, ra2, dec2 float64) float64 {
	r := math.Pi / 180
	cos := math.Sin(dec1*r)*math.Sin(dec2*r) + math.Cos(dec1*r)*math.Cos(dec2*r)*math.Cos((ra1-ra2)*r)
	return math.Acos(math.Max(-1, math.Min(1, cos))) / r
}
