package licensing

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/homebid/match-cli/internal/config"
	"github.com/homebid/match-cli/internal/fetch"
)

// Registry maps state codes to their roster sources.
type Registry struct {
	sources map[string]Source
	order   []string
}

// NewRegistry creates a registry populated with every supported board.
func NewRegistry(cfg *config.LicensingConfig, httpf fetch.Fetcher, ftpf *fetch.FTPFetcher) *Registry {
	r := &Registry{sources: make(map[string]Source)}
	r.Register(NewCSLB(httpf, cfg.CSLBURL))
	r.Register(NewFlorida(ftpf, cfg.FLFTPAddr, cfg.FLFTPPath))
	r.Register(NewTexas(httpf, cfg.TXURL))
	return r
}

// Register adds a source to the registry.
func (r *Registry) Register(s Source) {
	state := s.State()
	r.sources[state] = s
	r.order = append(r.order, state)
}

// Get returns the source for a state code.
func (r *Registry) Get(state string) (Source, error) {
	s, ok := r.sources[strings.ToUpper(strings.TrimSpace(state))]
	if !ok {
		return nil, eris.Errorf("licensing: no source for state %q", state)
	}
	return s, nil
}

// Select returns the sources for the named states, or every source in
// registration order when states is empty.
func (r *Registry) Select(states []string) ([]Source, error) {
	if len(states) == 0 {
		return r.All(), nil
	}
	result := make([]Source, 0, len(states))
	for _, state := range states {
		s, err := r.Get(state)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

// All returns every source in registration order.
func (r *Registry) All() []Source {
	result := make([]Source, 0, len(r.order))
	for _, state := range r.order {
		result = append(result, r.sources[state])
	}
	return result
}

// States returns every registered state code in registration order.
func (r *Registry) States() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
