package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/openshelf/openshelf-server/internal/isbndb"
)

func (s *Server) registerCatalogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchISBNdbBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/isbndb/search/books",
		Summary:     "Search ISBNdb books",
		Description: "Searches ISBNdb books. Responses are cached briefly.",
		Tags:        []string{"ISBNdb"},
	}, s.handleSearchBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchISBNdbAuthors",
		Method:      http.MethodGet,
		Path:        "/api/v1/isbndb/search/authors",
		Summary:     "Search ISBNdb authors",
		Description: "Returns author names matching the query",
		Tags:        []string{"ISBNdb"},
	}, s.handleSearchAuthors)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchISBNdbPublishers",
		Method:      http.MethodGet,
		Path:        "/api/v1/isbndb/search/publishers",
		Summary:     "Search ISBNdb publishers",
		Description: "Returns publisher names matching the query",
		Tags:        []string{"ISBNdb"},
	}, s.handleSearchPublishers)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchISBNdbIndex",
		Method:      http.MethodGet,
		Path:        "/api/v1/isbndb/index/{index}",
		Summary:     "Search an ISBNdb index",
		Description: "Runs a generic ISBNdb index search and returns the upstream response as-is",
		Tags:        []string{"ISBNdb"},
	}, s.handleSearchIndex)

	huma.Register(s.api, huma.Operation{
		OperationID: "getISBNdbStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/isbndb/stats",
		Summary:     "ISBNdb statistics",
		Description: "Returns upstream database statistics",
		Tags:        []string{"ISBNdb"},
	}, s.handleUpstreamStats)
}

// === DTOs ===

// SearchBooksInput contains parameters for an ISBNdb book search.
type SearchBooksInput struct {
	Query    string `query:"q" required:"true" minLength:"1" maxLength:"256" doc:"Search text"`
	Page     int    `query:"page" minimum:"0" doc:"Page number, 1-based"`
	PageSize int    `query:"page_size" minimum:"0" maximum:"1000" doc:"Results per page"`
	Column   string `query:"column" enum:"title,author,date_published,subjects" doc:"Restrict the match to one column"`
	Year     int    `query:"year" minimum:"0" doc:"Publication year"`
	Edition  int    `query:"edition" minimum:"0" doc:"Edition number"`
	Language string `query:"language" maxLength:"16" doc:"Language code"`
	MatchAll bool   `query:"match_all" doc:"Require every word to match"`
}

// NameSearchInput contains parameters for an author or publisher search.
type NameSearchInput struct {
	Query    string `query:"q" required:"true" minLength:"1" maxLength:"256" doc:"Search text"`
	Page     int    `query:"page" minimum:"0" doc:"Page number, 1-based"`
	PageSize int    `query:"page_size" minimum:"0" maximum:"1000" doc:"Results per page"`
}

// IndexSearchInput contains parameters for a generic index search.
type IndexSearchInput struct {
	Index     string `path:"index" enum:"books,authors,publishers,subjects" doc:"Index to search"`
	Text      string `query:"text" maxLength:"256" doc:"Free text"`
	Page      int    `query:"page" minimum:"0" doc:"Page number, 1-based"`
	PageSize  int    `query:"page_size" minimum:"0" maximum:"1000" doc:"Results per page"`
	ISBN      string `query:"isbn" maxLength:"32" doc:"ISBN-10 filter"`
	ISBN13    string `query:"isbn13" maxLength:"32" doc:"ISBN-13 filter"`
	Author    string `query:"author" maxLength:"256" doc:"Author filter"`
	Publisher string `query:"publisher" maxLength:"256" doc:"Publisher filter"`
	Subject   string `query:"subject" maxLength:"256" doc:"Subject filter"`
}

// BookSearchOutput wraps an ISBNdb book search for Huma.
type BookSearchOutput struct {
	Body *isbndb.BookSearchResult
}

// AuthorSearchOutput wraps an author search for Huma.
type AuthorSearchOutput struct {
	Body *isbndb.AuthorSearchResult
}

// PublisherSearchOutput wraps a publisher search for Huma.
type PublisherSearchOutput struct {
	Body *isbndb.PublisherSearchResult
}

// RawOutput carries an undecoded upstream response.
type RawOutput struct {
	Body json.RawMessage
}

// === Handlers ===

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*BookSearchOutput, error) {
	res, err := s.services.Catalog.SearchBooks(ctx, input.Query, isbndb.SearchBooksOptions{
		PageOptions:    isbndb.PageOptions{Page: input.Page, PageSize: input.PageSize},
		Column:         input.Column,
		Year:           input.Year,
		Edition:        input.Edition,
		Language:       input.Language,
		ShouldMatchAll: input.MatchAll,
	})
	if err != nil {
		return nil, err
	}
	return &BookSearchOutput{Body: res}, nil
}

func (s *Server) handleSearchAuthors(ctx context.Context, input *NameSearchInput) (*AuthorSearchOutput, error) {
	res, err := s.services.Catalog.SearchAuthors(ctx, input.Query, input.pageOptions())
	if err != nil {
		return nil, err
	}
	return &AuthorSearchOutput{Body: res}, nil
}

func (s *Server) handleSearchPublishers(ctx context.Context, input *NameSearchInput) (*PublisherSearchOutput, error) {
	res, err := s.services.Catalog.SearchPublishers(ctx, input.Query, input.pageOptions())
	if err != nil {
		return nil, err
	}
	return &PublisherSearchOutput{Body: res}, nil
}

func (s *Server) handleSearchIndex(ctx context.Context, input *IndexSearchInput) (*RawOutput, error) {
	filters := map[string]string{
		"text":      input.Text,
		"isbn":      input.ISBN,
		"isbn13":    input.ISBN13,
		"author":    input.Author,
		"publisher": input.Publisher,
		"subject":   input.Subject,
	}
	if input.Page > 0 {
		filters["page"] = strconv.Itoa(input.Page)
	}
	if input.PageSize > 0 {
		filters["pageSize"] = strconv.Itoa(input.PageSize)
	}

	raw, err := s.services.Catalog.SearchAll(ctx, input.Index, filters)
	if err != nil {
		return nil, err
	}
	return &RawOutput{Body: raw}, nil
}

func (s *Server) handleUpstreamStats(ctx context.Context, _ *struct{}) (*RawOutput, error) {
	raw, err := s.services.Catalog.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &RawOutput{Body: raw}, nil
}

func (in *NameSearchInput) pageOptions() isbndb.PageOptions {
	return isbndb.PageOptions{Page: in.Page, PageSize: in.PageSize}
}
