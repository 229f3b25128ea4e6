package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultLimit is used when SearchParams.Limit is unset.
const DefaultLimit = 20

// MaxLimit caps SearchParams.Limit.
const MaxLimit = 100

// SearchParams configures a search query.
type SearchParams struct {
	Query    string
	Language string // exact language code filter
	MinYear  int
	MaxYear  int
	Limit    int
	Offset   int
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit is a single matching book.
type SearchHit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Title      string            `json:"title"`
	Author     string            `json:"author,omitempty"`
	Publisher  string            `json:"publisher,omitempty"`
	Year       int               `json:"year,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Search executes a search query ordered by relevance.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	params.Limit = min(params.Limit, MaxLimit)
	params.Offset = max(params.Offset, 0)

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	req.SortBy([]string{"-_score", "_id"})
	req.Fields = []string{"title", "author", "publisher", "year"}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("title")
	req.Highlight.AddField("author")

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(res.Hits)),
	}

	for _, hit := range res.Hits {
		h := SearchHit{ID: hit.ID, Score: hit.Score}
		if v, ok := hit.Fields["title"].(string); ok {
			h.Title = v
		}
		if v, ok := hit.Fields["author"].(string); ok {
			h.Author = v
		}
		if v, ok := hit.Fields["publisher"].(string); ok {
			h.Publisher = v
		}
		if v, ok := hit.Fields["year"].(float64); ok {
			h.Year = int(v)
		}
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		titleMatch := bleve.NewMatchQuery(q)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)

		authorMatch := bleve.NewMatchQuery(q)
		authorMatch.SetField("author")
		authorMatch.SetBoost(2.0)

		publisherMatch := bleve.NewMatchQuery(q)
		publisherMatch.SetField("publisher")

		overviewMatch := bleve.NewMatchQuery(q)
		overviewMatch.SetField("overview")
		overviewMatch.SetBoost(0.5)

		// Typo tolerance on title
		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)

		textQueries := []query.Query{titleMatch, authorMatch, publisherMatch, overviewMatch, fuzzy}

		if isbn := isbnLike(q); isbn != "" {
			isbnTerm := bleve.NewTermQuery(isbn)
			isbnTerm.SetField("isbn")
			isbnTerm.SetBoost(5.0)
			textQueries = append(textQueries, isbnTerm)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.Language != "" {
		lq := bleve.NewTermQuery(strings.ToLower(params.Language))
		lq.SetField("language")
		queries = append(queries, lq)
	}

	if params.MinYear > 0 || params.MaxYear > 0 {
		lo := float64(params.MinYear)
		hi := float64(params.MaxYear)
		if params.MaxYear == 0 {
			hi = 3000
		}
		inclusive := true
		rq := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
		rq.SetField("year")
		queries = append(queries, rq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

// isbnLike returns q stripped of separators when it looks like an ISBN.
func isbnLike(q string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(q) {
		switch {
		case r >= '0' && r <= '9', r == 'X':
			b.WriteRune(r)
		case r == '-', r == ' ':
		default:
			return ""
		}
	}
	if n := b.Len(); n != 10 && n != 13 {
		return ""
	}
	return b.String()
}
