// Package licensing syncs state contractor license registries into the
// store and cross-references them against discovered prospects. Each
// state board publishes its roster differently (CSV in ZIP over HTTPS,
// CSV over FTP, XLSX); a Source hides the transport and format behind a
// streaming row channel.
package licensing

import (
	"context"

	"github.com/homebid/match-cli/internal/model"
)

// Source fetches and parses one state board's license roster.
type Source interface {
	// State returns the two-letter state code this source covers.
	State() string

	// URL returns the roster location, recorded in the sync log.
	URL() string

	// ETag returns the upstream change marker, or "" when the transport
	// cannot provide one (FTP boards re-download every run).
	ETag(ctx context.Context) (string, error)

	// Roster downloads and parses the roster into tempDir. Rows stream
	// on the first channel; a terminal error, if any, arrives on the
	// second. Both channels close when parsing finishes. Rows the board
	// publishes without a license number or business name are dropped.
	Roster(ctx context.Context, tempDir string) (<-chan model.License, <-chan error)
}
