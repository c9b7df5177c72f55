// Package match ranks contractors for bid cards and persists shortlists
// as append-only match runs.
package match

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/homebid/match-cli/internal/config"
	"github.com/homebid/match-cli/internal/geo"
	"github.com/homebid/match-cli/internal/model"
)

// Weights control the weighted ranking formula. The four component
// weights must sum to 1.
type Weights struct {
	Category float64 `yaml:"category"`
	Distance float64 `yaml:"distance"`
	Capacity float64 `yaml:"capacity"`
	Accept   float64 `yaml:"accept"`

	// MaxRadiusMiles is where the distance term bottoms out at 0.
	MaxRadiusMiles float64 `yaml:"max_radius_miles"`
}

// DefaultWeights returns the production weighting: category fit dominates,
// then proximity, with capacity and acceptance splitting the remainder.
func DefaultWeights() Weights {
	return Weights{
		Category:       0.55,
		Distance:       0.25,
		Capacity:       0.10,
		Accept:         0.10,
		MaxRadiusMiles: 75,
	}
}

// FromConfig builds Weights from the matching config, falling back to the
// defaults when no weights are configured.
func FromConfig(cfg config.MatchingConfig) Weights {
	w := DefaultWeights()
	if cfg.CategoryWeight > 0 || cfg.DistanceWeight > 0 || cfg.CapacityWeight > 0 || cfg.AcceptWeight > 0 {
		w.Category = cfg.CategoryWeight
		w.Distance = cfg.DistanceWeight
		w.Capacity = cfg.CapacityWeight
		w.Accept = cfg.AcceptWeight
	}
	if cfg.MaxRadiusMiles > 0 {
		w.MaxRadiusMiles = cfg.MaxRadiusMiles
	}
	return w
}

// WeightSum returns the sum of the four component weights.
func (w Weights) WeightSum() float64 {
	return w.Category + w.Distance + w.Capacity + w.Accept
}

// Validate checks that the weights are internally consistent.
func (w Weights) Validate() error {
	var errs []string

	components := map[string]float64{
		"category": w.Category,
		"distance": w.Distance,
		"capacity": w.Capacity,
		"accept":   w.Accept,
	}
	for name, v := range components {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	if sum := w.WeightSum(); math.Abs(sum-1) > 0.001 {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %.3f", sum))
	}

	if w.MaxRadiusMiles <= 0 {
		errs = append(errs, "max_radius_miles must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("match: weights validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Score ranks a contractor for a bid card on category fit, proximity,
// spare capacity, and recent acceptance. Pure: same inputs, same score.
func Score(w Weights, bc model.BidCard, c model.Contractor) float64 {
	var category float64
	if c.ServesCategory(bc.Category) {
		category = 1
	}

	// Unknown distance is neutral, not disqualifying.
	distance := 0.5
	if d := geo.Distance(bc.Location, c.Location); d != nil {
		distance = math.Max(0, 1-*d/w.MaxRadiusMiles)
	}

	active := math.Max(0, float64(c.ActiveJobs))
	capacity := math.Max(0, 1-active/math.Max(1, float64(c.MaxConcurrent)))

	accept := clamp01(c.AcceptRate30d)

	return w.Category*category + w.Distance*distance + w.Capacity*capacity + w.Accept*accept
}

// RuleScore is the legacy coarse formula kept for SQL-level ordering
// parity: 100 per category match, minus miles of distance, plus the 0-5
// rating. Unknown distance contributes nothing.
func RuleScore(bc model.BidCard, c model.Contractor) float64 {
	var s float64
	if c.ServesCategory(bc.Category) {
		s = 100
	}
	if d := geo.Distance(bc.Location, c.Location); d != nil {
		s -= *d
	}
	return s + c.Rating
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
