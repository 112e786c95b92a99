package provider

import (
	"context"

	"github.com/Digital-Shane/marquee/internal/content"
)

// Backend is implemented by every metadata service marquee can search.
// Credentials are passed per call so the Client can rotate between nodes.
type Backend interface {
	Name() string
	Description() string

	// SearchPage returns one page of lightweight search candidates.
	SearchPage(ctx context.Context, apiKey string, request PageRequest) (*Page, error)
	// Detail returns the full record for a single candidate.
	Detail(ctx context.Context, apiKey string, request DetailRequest) (*content.Item, error)
}

// PageRequest asks for one page of search results.
type PageRequest struct {
	Term string
	Kind content.Kind
	Year string
	Page int
}

// Page is one page of search results.
type Page struct {
	Number     int
	Candidates []Candidate
	// TotalResults as reported by the service, zero when unknown.
	TotalResults int
}

// Candidate is a search hit before detail enrichment.
type Candidate struct {
	ID        string
	Title     string
	Year      string
	Kind      content.Kind
	PosterURL string
}

// DetailRequest identifies a single record. ID wins over Title when both are set.
type DetailRequest struct {
	ID    string
	Title string
	Year  string
	Kind  content.Kind
}

// DetailFor builds the detail lookup for a candidate.
func DetailFor(c Candidate) DetailRequest {
	return DetailRequest{ID: c.ID, Title: c.Title, Year: c.Year, Kind: c.Kind}
}

// memoKey identifies a detail record independently of the credential used.
// Movie and series ids share a number space on some backends.
func (r DetailRequest) memoKey(backend string) string {
	if r.ID != "" {
		return backend + ":id:" + string(r.Kind) + ":" + r.ID
	}
	return backend + ":title:" + string(r.Kind) + ":" + r.Title + ":" + r.Year
}
