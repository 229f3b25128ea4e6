package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	domainerrors "github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/search"
	"github.com/openshelf/openshelf-server/internal/service"
)

var errSearchDisabled = domainerrors.Unavailable("library search is disabled")

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchLibrary",
		Method:      http.MethodGet,
		Path:        "/api/v1/library/search",
		Summary:     "Search cached books",
		Description: "Full-text search over books already in the local cache",
		Tags:        []string{"Library"},
	}, s.handleSearchLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindexLibrary",
		Method:      http.MethodPost,
		Path:        "/api/v1/library/reindex",
		Summary:     "Rebuild search index",
		Description: "Drops the local search index and reindexes every cached book",
		Tags:        []string{"Library"},
	}, s.handleReindexLibrary)
}

// === DTOs ===

// LibrarySearchInput contains parameters for a local search.
type LibrarySearchInput struct {
	Query    string `query:"q" maxLength:"256" doc:"Search text; empty matches everything"`
	Language string `query:"language" maxLength:"16" doc:"Exact language code"`
	MinYear  int    `query:"min_year" minimum:"0" doc:"Earliest publication year"`
	MaxYear  int    `query:"max_year" minimum:"0" doc:"Latest publication year"`
	Limit    int    `query:"limit" minimum:"0" maximum:"100" doc:"Results per page (default 20)"`
	Offset   int    `query:"offset" minimum:"0" doc:"Results to skip"`
}

// LibrarySearchOutput wraps local search results for Huma.
type LibrarySearchOutput struct {
	Body *service.LibrarySearchResult
}

// ReindexResponse reports a completed reindex.
type ReindexResponse struct {
	Indexed int `json:"indexed" doc:"Books written to the index"`
}

// ReindexOutput wraps the reindex response for Huma.
type ReindexOutput struct {
	Body ReindexResponse
}

// === Handlers ===

func (s *Server) handleSearchLibrary(ctx context.Context, input *LibrarySearchInput) (*LibrarySearchOutput, error) {
	if s.services.Search == nil {
		return nil, errSearchDisabled
	}
	if input.MaxYear > 0 && input.MinYear > input.MaxYear {
		return nil, huma.Error422UnprocessableEntity("min_year must not exceed max_year")
	}

	res, err := s.services.Search.SearchLocal(ctx, search.SearchParams{
		Query:    input.Query,
		Language: input.Language,
		MinYear:  input.MinYear,
		MaxYear:  input.MaxYear,
		Limit:    input.Limit,
		Offset:   input.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &LibrarySearchOutput{Body: res}, nil
}

func (s *Server) handleReindexLibrary(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	if s.services.Search == nil {
		return nil, errSearchDisabled
	}
	n, err := s.services.Search.Reindex(ctx)
	if err != nil {
		return nil, err
	}
	return &ReindexOutput{Body: ReindexResponse{Indexed: n}}, nil
}
