package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"pagewright/internal/definitions"
	"pagewright/internal/domain"
	"pagewright/internal/engine/auth"
	"pagewright/internal/repo"
)

// DefinitionInfo is a registered page type as exposed to clients.
type DefinitionInfo struct {
	Type          string                               `json:"type"`
	TypeLabelKey  string                               `json:"type_label_key"`
	Properties    map[string]definitions.PropertyGroup `json:"properties"`
	InitialBlocks []domain.Block                       `json:"initial_blocks"`
}

func definitionInfo(name string, def definitions.PageDefinition) DefinitionInfo {
	props := def.Properties
	if props == nil {
		props = map[string]definitions.PropertyGroup{}
	}
	return DefinitionInfo{Type: name, TypeLabelKey: def.TypeLabelKey, Properties: props, InitialBlocks: def.Blocks()}
}

func (e Engine) ListDefinitions(ctx context.Context, actor auth.Actor) ([]DefinitionInfo, error) {
	if err := auth.Authorize(actor, auth.ActionDefinitionsRead); err != nil {
		return nil, err
	}
	types := e.Defs.Types()
	out := make([]DefinitionInfo, 0, len(types))
	for _, name := range types {
		def, err := e.Defs.Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, definitionInfo(name, def))
	}
	return out, nil
}

func (e Engine) GetDefinition(ctx context.Context, actor auth.Actor, pageType string) (DefinitionInfo, error) {
	if err := auth.Authorize(actor, auth.ActionDefinitionsRead); err != nil {
		return DefinitionInfo{}, err
	}
	def, err := e.Defs.Lookup(pageType)
	if err != nil {
		return DefinitionInfo{}, notFound("definition", pageType)
	}
	return definitionInfo(pageType, def), nil
}

// ListEvents returns audit events newest first.
func (e Engine) ListEvents(ctx context.Context, actor auth.Actor, f repo.EventFilters) ([]domain.Event, error) {
	if err := auth.Authorize(actor, auth.ActionEventsRead); err != nil {
		return nil, err
	}
	return e.Repo.LatestEvents(ctx, f)
}

// ResolveRole returns the stored role of an actor, or user when the actor is
// unknown.
func (e Engine) ResolveRole(ctx context.Context, actorID string) (auth.Role, error) {
	a, err := e.Repo.GetActor(ctx, nil, actorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return auth.RoleUser, nil
		}
		return "", err
	}
	return auth.ParseRole(a.Role)
}

// SetActorRole assigns a role. It is an operator action of the local CLI and
// carries no caller check.
func (e Engine) SetActorRole(ctx context.Context, actorID string, role auth.Role) (domain.Actor, error) {
	if actorID == "" {
		return domain.Actor{}, ValidationError{Field: "actor_id", Reason: "is required"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Actor{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetActorRole(ctx, tx, actorID, string(role), e.now()); err != nil {
		return domain.Actor{}, err
	}
	a, err := e.Repo.GetActor(ctx, tx, actorID)
	if err != nil {
		return domain.Actor{}, err
	}
	return a, tx.Commit()
}

// CreateAPIKey issues a key for actorID. The plain key is returned once; only
// its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	if actorID == "" {
		return domain.APIKey{}, "", ValidationError{Field: "actor_id", Reason: "is required"}
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate api key: %w", err)
	}
	plain := "pw_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        newID(),
		ActorID:   actorID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.now(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureActor(ctx, tx, actorID, key.CreatedAt); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plain, nil
}
