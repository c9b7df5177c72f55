package match

import (
	"context"

	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/store"
)

// mockStore implements Store for testing.
type mockStore struct {
	candidates []model.Contractor
	fetchErr   error
	saveErr    error

	fetchedQueries []store.CandidateQuery
	saved          []model.MatchResult
	saveCalls      int
}

func (m *mockStore) FetchCandidates(_ context.Context, q store.CandidateQuery) ([]model.Contractor, error) {
	m.fetchedQueries = append(m.fetchedQueries, q)
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.candidates, nil
}

func (m *mockStore) SaveMatchResults(_ context.Context, results []model.MatchResult) error {
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, results...)
	return nil
}

// mockEscalator implements Escalator for testing.
type mockEscalator struct {
	summary model.EscalationSummary
	err     error

	calls    int
	bidCards []model.BidCard
	known    [][]string
}

func (m *mockEscalator) Escalate(_ context.Context, bc model.BidCard, knownContractorIDs []string) (model.EscalationSummary, error) {
	m.calls++
	m.bidCards = append(m.bidCards, bc)
	m.known = append(m.known, knownContractorIDs)
	if m.err != nil {
		return model.EscalationSummary{}, m.err
	}
	return m.summary, nil
}
