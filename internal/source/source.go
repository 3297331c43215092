// Package source loads the candidate pool from the published markdown list.
package source

import (
	"context"
	"fmt"
	"os"

	"proxyscout/internal/storage/models"
	pkgerrors "proxyscout/pkg/errors"
)

// List is one snapshot of the candidate list.
type List struct {
	URL        string
	Hash       string
	Candidates []models.Candidate
}

// Load fetches url and parses the rows of region. The hash covers the raw
// content so that unrelated edits of the list also count as a change.
func Load(ctx context.Context, f *Fetcher, url, region string) (*List, error) {
	content, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return parse(url, content, region)
}

// LoadFile reads a local markdown list.
func LoadFile(path, region string) (*List, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &pkgerrors.SourceError{URL: path, Err: fmt.Errorf("%w: %w", pkgerrors.ErrSourceFetchFailed, err)}
	}
	return parse(path, content, region)
}

func parse(url string, content []byte, region string) (*List, error) {
	list := &List{
		URL:        url,
		Hash:       Hash(content),
		Candidates: ParseTable(string(content), region),
	}
	if len(list.Candidates) == 0 {
		return list, &pkgerrors.SourceError{URL: url, Err: fmt.Errorf("%w: no rows for region %q", pkgerrors.ErrSourceEmpty, region)}
	}
	return list, nil
}
