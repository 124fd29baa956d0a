package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"pagewright/internal/domain"
	"pagewright/internal/engine"
	"pagewright/internal/repo"
)

type pageBody struct {
	Body domain.Page `json:"body"`
}

func registerDefinitions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-definitions",
		Method:      http.MethodGet,
		Path:        "/definitions",
		Summary:     "List page definitions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body definitionList `json:"body"`
	}, error) {
		defs, err := e.ListDefinitions(ctx, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body definitionList `json:"body"`
		}{Body: definitionList{Items: nonNilSlice(defs)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-definition",
		Method:      http.MethodGet,
		Path:        "/definitions/{type}",
		Summary:     "Get page definition",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Type string `path:"type"`
	}) (*struct {
		Body engine.DefinitionInfo `json:"body"`
	}, error) {
		def, err := e.GetDefinition(ctx, actorFromContext(ctx), input.Type)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body engine.DefinitionInfo `json:"body"`
		}{Body: def}, nil
	})
}

func registerPages(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-pages",
		Method:      http.MethodGet,
		Path:        "/pages",
		Summary:     "List pages",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Type    string `query:"type"`
		Status  string `query:"status"`
		OrderBy string `query:"order_by"`
		Order   string `query:"order"`
		Locale  string `query:"locale"`
		Page    int    `query:"page" default:"1"`
		Limit   int    `query:"limit" default:"10"`
	}) (*struct {
		Body engine.PageList `json:"body"`
	}, error) {
		list, err := e.ListPages(ctx, actorFromContext(ctx), engine.PageListOptions{
			Type:    input.Type,
			Status:  repo.PageStatus(input.Status),
			OrderBy: repo.PageOrder(input.OrderBy),
			Asc:     strings.EqualFold(input.Order, "asc"),
			Locale:  input.Locale,
			Page:    input.Page,
			Limit:   input.Limit,
		})
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		list.Items = nonNilSlice(list.Items)
		return &struct {
			Body engine.PageList `json:"body"`
		}{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-slugs",
		Method:      http.MethodGet,
		Path:        "/pages/slugs",
		Summary:     "List page slugs",
	}, func(ctx context.Context, input *struct {
		Type string `query:"type"`
	}) (*struct {
		Body slugList `json:"body"`
	}, error) {
		slugs, err := e.ListSlugs(ctx, actorFromContext(ctx), input.Type)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body slugList `json:"body"`
		}{Body: slugList{Items: nonNilSlice(slugs)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-page",
		Method:      http.MethodPost,
		Path:        "/pages",
		Summary:     "Create page",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreatePageRequest `json:"body"`
	}) (*pageBody, error) {
		p, err := e.CreatePage(ctx, actorFromContext(ctx), input.Body.options())
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &pageBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "find-page",
		Method:      http.MethodGet,
		Path:        "/pages/find/{slug}",
		Summary:     "Find page by slug",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Slug string `path:"slug"`
	}) (*pageBody, error) {
		p, err := e.FindPage(ctx, actorFromContext(ctx), input.Slug)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &pageBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-page-by-id",
		Method:      http.MethodGet,
		Path:        "/pages/id/{id}",
		Summary:     "Get page by id",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*pageBody, error) {
		p, err := e.GetPageByID(ctx, actorFromContext(ctx), input.ID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &pageBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-page",
		Method:      http.MethodGet,
		Path:        "/pages/{type}/{slug}",
		Summary:     "Get page by type and slug",
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Type string `path:"type"`
		Slug string `path:"slug"`
	}) (*pageBody, error) {
		p, err := e.GetPage(ctx, actorFromContext(ctx), input.Type, input.Slug)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &pageBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "publish-page",
		Method:      http.MethodPost,
		Path:        "/pages/id/{id}/publish",
		Summary:     "Publish page now",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*pageBody, error) {
		p, err := e.PublishPage(ctx, actorFromContext(ctx), input.ID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &pageBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-page",
		Method:      http.MethodDelete,
		Path:        "/pages/id/{id}",
		Summary:     "Delete page",
		Description: "Soft deletes the page. With hard=true the page and its versions are removed.",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Hard bool   `query:"hard"`
	}) (*struct {
		Body DeleteResponse `json:"body"`
	}, error) {
		if err := e.DeletePage(ctx, actorFromContext(ctx), input.ID, input.Hard); err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body DeleteResponse `json:"body"`
		}{Body: DeleteResponse{Success: true}}, nil
	})
}
