package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"pagewright/internal/engine"
	"pagewright/internal/repo"
)

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List audit events",
		Description: "Newest first. Pass next_cursor back as cursor for the following page.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		PageID string `query:"page_id"`
		Type   string `query:"type"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var before int64
		if input.Cursor != "" {
			n, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || n <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			before = n
		}
		evts, err := e.ListEvents(ctx, actorFromContext(ctx), repo.EventFilters{
			PageID: input.PageID,
			Type:   input.Type,
			Before: before,
			Limit:  limit + 1,
		})
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		resp := paginatedEvents{Items: make([]EventResponse, 0, len(evts))}
		if len(evts) > limit {
			evts = evts[:limit]
			resp.NextCursor = strconv.FormatInt(evts[limit-1].ID, 10)
		}
		for _, evt := range evts {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}
