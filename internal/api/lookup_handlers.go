package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/openshelf/openshelf-server/internal/lookup"
)

// Lookup states reported to clients.
const (
	lookupQueued    = "queued"
	lookupCompleted = "completed"
	lookupNotFound  = "not_found"
)

const (
	defaultLookupWait = 30 * time.Second
	lookupPath        = "/api/v1/isbndb/lookups/"
)

func (s *Server) registerLookupRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "enqueueLookup",
		Method:        http.MethodPost,
		Path:          "/api/v1/isbndb/lookups",
		Summary:       "Queue a lookup",
		Description:   "Queues a rate-limited ISBNdb lookup. With wait set, blocks until the lookup resolves or the timeout passes.",
		Tags:          []string{"Lookups"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleEnqueueLookup)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLookup",
		Method:      http.MethodGet,
		Path:        "/api/v1/isbndb/lookups/{id}",
		Summary:     "Get lookup status",
		Description: "Returns the state of a queued lookup, and its result once resolved. Finished lookups are kept for a bounded time.",
		Tags:        []string{"Lookups"},
	}, s.handleGetLookup)

	huma.Register(s.api, huma.Operation{
		OperationID: "getQueueStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/isbndb/queue",
		Summary:     "Queue statistics",
		Description: "Returns the lookup queue length and worker state",
		Tags:        []string{"Lookups"},
	}, s.handleGetQueueStats)
}

// === DTOs ===

// LookupRequest is the body of a lookup request.
type LookupRequest struct {
	Kind           string `json:"kind" validate:"required,oneof=book author publisher" enum:"book,author,publisher" doc:"What to look up"`
	Value          string `json:"value" validate:"required,max=512" minLength:"1" maxLength:"512" doc:"ISBN for books, name otherwise"`
	Priority       string `json:"priority,omitempty" validate:"omitempty,oneof=high low" enum:"high,low" doc:"Queue priority (default low)"`
	Wait           bool   `json:"wait,omitempty" doc:"Block until the lookup resolves"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" validate:"gte=0,lte=60" minimum:"0" maximum:"60" doc:"Maximum wait in seconds (default 30)"`
}

// EnqueueLookupInput wraps the lookup request for Huma.
type EnqueueLookupInput struct {
	Body LookupRequest
}

// LookupResponse describes a queued or resolved lookup.
type LookupResponse struct {
	ID       string         `json:"id" doc:"Queue item ID"`
	Kind     string         `json:"kind" doc:"Lookup kind"`
	Priority string         `json:"priority" doc:"Queue priority"`
	Status   string         `json:"status" doc:"queued, completed, or not_found"`
	Result   *lookup.Result `json:"result,omitempty" doc:"Lookup result once resolved"`
}

// LookupOutput wraps a lookup response for Huma.
type LookupOutput struct {
	Status   int
	Location string `header:"Location"`
	Body     LookupResponse
}

// GetLookupInput identifies a queued lookup.
type GetLookupInput struct {
	ID string `path:"id" doc:"Queue item ID"`
}

// LookupStatusOutput wraps an item status for Huma.
type LookupStatusOutput struct {
	Body lookup.ItemStatus
}

// QueueStatsOutput wraps queue stats for Huma.
type QueueStatsOutput struct {
	Body lookup.Stats
}

// === Handlers ===

func (s *Server) handleEnqueueLookup(ctx context.Context, input *EnqueueLookupInput) (*LookupOutput, error) {
	req := input.Body
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Priority == "" {
		req.Priority = string(lookup.PriorityLow)
	}

	kind := lookup.Kind(req.Kind)
	payload := lookup.Payload{Name: req.Value}
	if kind == lookup.KindBook {
		payload = lookup.Payload{ISBN: req.Value}
	}

	future, err := s.services.Queue.Enqueue(kind, payload, lookup.Priority(req.Priority))
	if err != nil {
		return nil, err
	}

	out := &LookupOutput{
		Status:   http.StatusAccepted,
		Location: lookupPath + future.ID(),
		Body: LookupResponse{
			ID:       future.ID(),
			Kind:     req.Kind,
			Priority: req.Priority,
			Status:   lookupQueued,
		},
	}
	if !req.Wait {
		return out, nil
	}

	wait := defaultLookupWait
	if req.TimeoutSeconds > 0 {
		wait = time.Duration(req.TimeoutSeconds) * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	result, err := future.Wait(waitCtx)
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		// Still queued; the client polls the Location.
		return out, nil
	case err != nil:
		return nil, err
	}

	out.Status = http.StatusOK
	out.Location = ""
	out.Body.Status = lookupCompleted
	if result.NotFound {
		out.Body.Status = lookupNotFound
	}
	out.Body.Result = &result
	return out, nil
}

func (s *Server) handleGetLookup(_ context.Context, input *GetLookupInput) (*LookupStatusOutput, error) {
	st, ok := s.services.Queue.Status(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("lookup not found")
	}
	return &LookupStatusOutput{Body: st}, nil
}

func (s *Server) handleGetQueueStats(_ context.Context, _ *struct{}) (*QueueStatsOutput, error) {
	return &QueueStatsOutput{Body: s.services.Queue.Stats()}, nil
}
