package server

import (
	"time"

	json "github.com/goccy/go-json"

	"pagewright/internal/domain"
	"pagewright/internal/engine"
)

// Request payloads

type CreatePageRequest struct {
	Type        string             `json:"type" minLength:"1"`
	Slug        string             `json:"slug" minLength:"1"`
	Title       domain.Localized   `json:"title"`
	Description domain.Localized   `json:"description,omitempty"`
	Tags        []domain.Localized `json:"tags,omitempty"`
	AuthorIDs   []string           `json:"author_ids,omitempty"`
	Blocks      []domain.Block     `json:"blocks,omitempty"`
	Properties  domain.Properties  `json:"properties,omitempty"`
}

func (r CreatePageRequest) options() engine.PageCreateOptions {
	return engine.PageCreateOptions{
		Type:        r.Type,
		Slug:        r.Slug,
		Title:       r.Title,
		Description: r.Description,
		Tags:        r.Tags,
		AuthorIDs:   r.AuthorIDs,
		Blocks:      r.Blocks,
		Properties:  r.Properties,
	}
}

// ProposeVersionRequest carries a change; omitted fields keep the live value.
type ProposeVersionRequest struct {
	Slug        *string            `json:"slug,omitempty"`
	Type        *string            `json:"type,omitempty"`
	Title       domain.Localized   `json:"title,omitempty"`
	Description domain.Localized   `json:"description,omitempty"`
	Tags        []domain.Localized `json:"tags,omitempty"`
	AuthorIDs   []string           `json:"author_ids,omitempty"`
	Blocks      []domain.Block     `json:"blocks,omitempty"`
	Properties  domain.Properties  `json:"properties,omitempty"`
	PostedAt    *time.Time         `json:"posted_at,omitempty" format:"date-time"`
}

func (r ProposeVersionRequest) input() engine.VersionInput {
	return engine.VersionInput{
		Slug:        r.Slug,
		Type:        r.Type,
		Title:       r.Title,
		Description: r.Description,
		Tags:        r.Tags,
		AuthorIDs:   r.AuthorIDs,
		Blocks:      r.Blocks,
		Properties:  r.Properties,
		PostedAt:    r.PostedAt,
	}
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id" minLength:"1"`
	Role    string `json:"role,omitempty" enum:"user,member,admin,owner"`
}

// Responses

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	Source  string `json:"source"`
}

type DeleteResponse struct {
	Success bool `json:"success"`
}

type EventResponse struct {
	ID         int64     `json:"id"`
	TS         time.Time `json:"ts" format:"date-time"`
	Type       string    `json:"type"`
	PageID     string    `json:"page_id,omitempty"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	Payload    any       `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func eventResponse(evt domain.Event) EventResponse {
	var payload any = map[string]any{}
	if evt.Payload != "" {
		var decoded any
		if err := json.Unmarshal([]byte(evt.Payload), &decoded); err == nil {
			payload = decoded
		} else {
			payload = evt.Payload
		}
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		PageID:     evt.PageID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		Payload:    payload,
	}
}

type versionList struct {
	Items []domain.PageVersion `json:"items"`
}

type slugList struct {
	Items []domain.PageSlug `json:"items"`
}

type definitionList struct {
	Items []engine.DefinitionInfo `json:"items"`
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
