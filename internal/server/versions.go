package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"pagewright/internal/domain"
	"pagewright/internal/engine"
)

type versionResultBody struct {
	Body engine.VersionResult `json:"body"`
}

type promoteInput struct {
	VersionID         string `path:"version_id"`
	ExpectedUpdatedAt string `query:"expected_updated_at" doc:"Fail with 409 unless the page still has this updated_at"`
}

func (in promoteInput) options() (engine.WriteOptions, huma.StatusError) {
	expected, herr := parseTimeParam("expected_updated_at", in.ExpectedUpdatedAt)
	if herr != nil {
		return engine.WriteOptions{}, herr
	}
	return engine.WriteOptions{ExpectedUpdatedAt: expected}, nil
}

var promoteErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusInternalServerError,
}

func registerVersions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "propose-version",
		Method:      http.MethodPut,
		Path:        "/pages/id/{id}",
		Summary:     "Propose a new version",
		Description: "Stores a pending version. The live page changes only when the version is approved.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body ProposeVersionRequest `json:"body"`
	}) (*struct {
		Body domain.PageVersion `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		v, err := e.ProposeVersion(ctx, actorFromContext(ctx), input.ID, input.Body.input())
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body domain.PageVersion `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-versions",
		Method:      http.MethodGet,
		Path:        "/pages/id/{id}/versions",
		Summary:     "List versions of a page",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body versionList `json:"body"`
	}, error) {
		versions, err := e.ListVersions(ctx, actorFromContext(ctx), input.ID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body versionList `json:"body"`
		}{Body: versionList{Items: nonNilSlice(versions)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/versions/{version_id}",
		Summary:     "Get version",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		VersionID string `path:"version_id"`
	}) (*struct {
		Body domain.PageVersion `json:"body"`
	}, error) {
		v, err := e.GetVersion(ctx, actorFromContext(ctx), input.VersionID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body domain.PageVersion `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-version",
		Method:      http.MethodPost,
		Path:        "/versions/{version_id}/approve",
		Summary:     "Approve a pending version",
		Errors:      promoteErrors,
	}, func(ctx context.Context, input *promoteInput) (*versionResultBody, error) {
		opts, herr := input.options()
		if herr != nil {
			return nil, herr
		}
		res, err := e.ApproveVersion(ctx, actorFromContext(ctx), input.VersionID, opts)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &versionResultBody{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revert-version",
		Method:      http.MethodPost,
		Path:        "/versions/{version_id}/revert",
		Summary:     "Revert the page to a version",
		Description: "Applies the version to the page and rejects every later version.",
		Errors:      promoteErrors,
	}, func(ctx context.Context, input *promoteInput) (*versionResultBody, error) {
		opts, herr := input.options()
		if herr != nil {
			return nil, herr
		}
		res, err := e.RevertToVersion(ctx, actorFromContext(ctx), input.VersionID, opts)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		res.Superseded = nonNilSlice(res.Superseded)
		return &versionResultBody{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-version",
		Method:      http.MethodPost,
		Path:        "/versions/{version_id}/reject",
		Summary:     "Reject a pending version",
		Errors:      promoteErrors,
	}, func(ctx context.Context, input *struct {
		VersionID string `path:"version_id"`
	}) (*versionResultBody, error) {
		res, err := e.RejectVersion(ctx, actorFromContext(ctx), input.VersionID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		res.Superseded = nonNilSlice(res.Superseded)
		return &versionResultBody{Body: res}, nil
	})
}
