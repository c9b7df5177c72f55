package match

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadWeights reads a weight profile from a YAML file. Omitted fields keep
// their defaults; the merged profile must validate.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrapf(err, "match: read weight profile %s", path)
	}

	// The YAML has a top-level "weights" key. Pointers distinguish an
	// explicit 0 from an omitted field.
	var wrapper struct {
		Weights struct {
			Category       *float64 `yaml:"category"`
			Distance       *float64 `yaml:"distance"`
			Capacity       *float64 `yaml:"capacity"`
			Accept         *float64 `yaml:"accept"`
			MaxRadiusMiles *float64 `yaml:"max_radius_miles"`
		} `yaml:"weights"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Weights{}, eris.Wrap(err, "match: parse weight profile")
	}

	w := DefaultWeights()
	if v := wrapper.Weights.Category; v != nil {
		w.Category = *v
	}
	if v := wrapper.Weights.Distance; v != nil {
		w.Distance = *v
	}
	if v := wrapper.Weights.Capacity; v != nil {
		w.Capacity = *v
	}
	if v := wrapper.Weights.Accept; v != nil {
		w.Accept = *v
	}
	if v := wrapper.Weights.MaxRadiusMiles; v != nil {
		w.MaxRadiusMiles = *v
	}

	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}
