package salesforce

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// BulkInsertLeads inserts lead records in Collections API sized batches.
// On a batch failure it returns the results accumulated so far; the
// error names the record range that did not make it.
func BulkInsertLeads(ctx context.Context, c Client, records []map[string]any) ([]CollectionResult, error) {
	var all []CollectionResult
	sent := 0
	for batch := range slices.Chunk(records, maxBatchSize) {
		results, err := c.InsertCollection(ctx, "Lead", batch)
		if err != nil {
			return all, eris.Wrapf(err, "sf: bulk insert leads batch %d-%d", sent, sent+len(batch))
		}
		all = append(all, results...)
		sent += len(batch)
	}
	return all, nil
}
