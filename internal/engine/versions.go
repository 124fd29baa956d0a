package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"pagewright/internal/definitions"
	"pagewright/internal/domain"
	"pagewright/internal/engine/auth"
	"pagewright/internal/events"
	"pagewright/internal/repo"
)

// VersionInput is a proposed change. Nil fields keep the live page value.
type VersionInput struct {
	Slug        *string
	Type        *string
	Title       domain.Localized
	Description domain.Localized
	Tags        []domain.Localized
	AuthorIDs   []string
	Blocks      []domain.Block
	Properties  domain.Properties
	PostedAt    *time.Time
}

// WriteOptions carry the optimistic precondition of a promoting write.
type WriteOptions struct {
	ExpectedUpdatedAt *time.Time
}

// VersionResult is the outcome of approve, reject or revert.
type VersionResult struct {
	Page       domain.Page        `json:"page"`
	Version    domain.PageVersion `json:"version"`
	Superseded []string           `json:"superseded"`
}

// ProposeVersion stores a pending version of a live page. The page itself
// is not changed.
func (e Engine) ProposeVersion(ctx context.Context, actor auth.Actor, pageID string, in VersionInput) (domain.PageVersion, error) {
	if err := auth.Authorize(actor, auth.ActionVersionPropose); err != nil {
		return domain.PageVersion{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PageVersion{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetPage(ctx, tx, pageID)
	if err != nil {
		return domain.PageVersion{}, wrapNotFound(err, "page", pageID)
	}
	if p.DeletedAt != nil {
		return domain.PageVersion{}, notFound("page", pageID)
	}
	if in.Type != nil && *in.Type != p.Type {
		return domain.PageVersion{}, ValidationError{Field: "type", Reason: "cannot change the type of an existing page"}
	}
	def, err := e.definition(p)
	if err != nil {
		return domain.PageVersion{}, err
	}

	v := snapshotOf(p)
	if in.Slug != nil {
		if err := validateSlug(*in.Slug); err != nil {
			return domain.PageVersion{}, err
		}
		v.Slug = *in.Slug
	}
	if in.Title != nil {
		if err := validateTitle(in.Title); err != nil {
			return domain.PageVersion{}, err
		}
		v.Title = in.Title
	}
	if in.Description != nil {
		v.Description = in.Description
	}
	if in.Tags != nil {
		v.Tags = in.Tags
	}
	if in.AuthorIDs != nil {
		v.AuthorIDs = in.AuthorIDs
	}
	if in.Blocks != nil {
		v.Content.Blocks = in.Blocks
	}
	if in.Properties != nil {
		v.Content.Properties = in.Properties
	}
	if in.PostedAt != nil {
		t := in.PostedAt.UTC()
		v.PostedAt = &t
	}
	if err := e.checkSlugFree(ctx, tx, v.Slug, p.ID); err != nil {
		return domain.PageVersion{}, err
	}
	if err := e.validateContent(ctx, tx, v.Content, def); err != nil {
		return domain.PageVersion{}, err
	}
	if err := e.ensureActor(ctx, tx, actor); err != nil {
		return domain.PageVersion{}, err
	}

	v.ID = newID()
	v.Status = domain.VersionPending
	v.CreatedBy = actor.ID
	v.CreatedAt = e.now()
	v, err = e.Repo.InsertVersion(ctx, tx, v)
	if err != nil {
		return domain.PageVersion{}, err
	}
	if err := e.appendEvent(ctx, tx, events.Entry{
		Type: events.VersionProposed, PageID: p.ID, EntityKind: "version", EntityID: v.ID, ActorID: actor.ID,
		Payload: events.EventPayload{"seq": v.Seq},
	}); err != nil {
		return domain.PageVersion{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PageVersion{}, err
	}
	e.logger().Info("version proposed", zap.String("page_id", p.ID), zap.String("version_id", v.ID), zap.Int64("seq", v.Seq))
	return v, nil
}

// snapshotOf copies the live values of p into a version.
func snapshotOf(p domain.Page) domain.PageVersion {
	return domain.PageVersion{
		PageID:      p.ID,
		Slug:        p.Slug,
		Type:        p.Type,
		Title:       p.Title,
		Description: p.Description,
		Tags:        p.Tags,
		AuthorIDs:   p.AuthorIDs,
		Content:     p.Content,
		PostedAt:    p.PostedAt,
	}
}

func (e Engine) GetVersion(ctx context.Context, actor auth.Actor, versionID string) (domain.PageVersion, error) {
	if err := auth.Authorize(actor, auth.ActionVersionRead); err != nil {
		return domain.PageVersion{}, err
	}
	v, err := e.Repo.GetVersion(ctx, nil, versionID)
	if err != nil {
		return domain.PageVersion{}, wrapNotFound(err, "version", versionID)
	}
	return v, nil
}

// ListVersions returns all versions of a page, newest first.
func (e Engine) ListVersions(ctx context.Context, actor auth.Actor, pageID string) ([]domain.PageVersion, error) {
	if err := auth.Authorize(actor, auth.ActionVersionRead); err != nil {
		return nil, err
	}
	if _, err := e.Repo.GetPage(ctx, nil, pageID); err != nil {
		return nil, wrapNotFound(err, "page", pageID)
	}
	return e.Repo.ListVersions(ctx, nil, pageID)
}

// ApproveVersion promotes a pending version into the live page.
func (e Engine) ApproveVersion(ctx context.Context, actor auth.Actor, versionID string, opts WriteOptions) (VersionResult, error) {
	return e.promote(ctx, actor, auth.ActionVersionApprove, eventApprove, versionID, opts)
}

// RevertToVersion restores the page to a pending or approved version and
// rejects every non-rejected version ordered after it.
func (e Engine) RevertToVersion(ctx context.Context, actor auth.Actor, versionID string, opts WriteOptions) (VersionResult, error) {
	return e.promote(ctx, actor, auth.ActionVersionRevert, eventRevert, versionID, opts)
}

// RejectVersion marks a pending version rejected. The page is not changed.
func (e Engine) RejectVersion(ctx context.Context, actor auth.Actor, versionID string) (VersionResult, error) {
	return e.promote(ctx, actor, auth.ActionVersionReject, eventReject, versionID, WriteOptions{})
}

// promote runs one version event under the page lock in a single
// transaction.
func (e Engine) promote(ctx context.Context, actor auth.Actor, action auth.Action, event, versionID string, opts WriteOptions) (VersionResult, error) {
	if err := auth.Authorize(actor, action); err != nil {
		return VersionResult{}, err
	}
	target, err := e.Repo.GetVersion(ctx, nil, versionID)
	if err != nil {
		return VersionResult{}, wrapNotFound(err, "version", versionID)
	}
	unlock, err := e.lockPage(target.PageID)
	if err != nil {
		e.Metrics.Transition(event, "conflict")
		return VersionResult{}, err
	}
	defer unlock()

	res, err := e.promoteTx(ctx, actor, event, versionID, opts)
	e.Metrics.Transition(event, outcome(err))
	if err != nil {
		return VersionResult{}, err
	}
	e.logger().Info("version "+event,
		zap.String("page_id", res.Page.ID), zap.String("version_id", versionID),
		zap.Int("superseded", len(res.Superseded)), zap.String("actor_id", actor.ID))
	return res, nil
}

func (e Engine) promoteTx(ctx context.Context, actor auth.Actor, event, versionID string, opts WriteOptions) (VersionResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return VersionResult{}, err
	}
	defer tx.Rollback()

	v, err := e.Repo.GetVersion(ctx, tx, versionID)
	if err != nil {
		return VersionResult{}, wrapNotFound(err, "version", versionID)
	}
	p, err := e.Repo.GetPage(ctx, tx, v.PageID)
	if err != nil {
		return VersionResult{}, wrapNotFound(err, "page", v.PageID)
	}
	if p.DeletedAt != nil {
		return VersionResult{}, notFound("page", p.ID)
	}
	if opts.ExpectedUpdatedAt != nil && !opts.ExpectedUpdatedAt.Equal(p.UpdatedAt) {
		return VersionResult{}, ConflictError{PageID: p.ID, Reason: "page was updated since " + opts.ExpectedUpdatedAt.UTC().Format(time.RFC3339Nano)}
	}
	status, err := transition(ctx, v, event)
	if err != nil {
		return VersionResult{}, err
	}
	def, err := e.definition(p)
	if err != nil {
		return VersionResult{}, err
	}
	if err := e.ensureActor(ctx, tx, actor); err != nil {
		return VersionResult{}, err
	}

	now := e.now()
	res := VersionResult{Superseded: []string{}}
	if event == eventReject {
		if err := e.Repo.SetVersionStatus(ctx, tx, v.ID, status, nil, nil); err != nil {
			return VersionResult{}, err
		}
		v.Status = status
	} else {
		if err := e.applyVersion(ctx, tx, v, p.UpdatedAt, now); err != nil {
			return VersionResult{}, err
		}
		approver := actor.ID
		if err := e.Repo.SetVersionStatus(ctx, tx, v.ID, status, &approver, &now); err != nil {
			return VersionResult{}, err
		}
		v.Status, v.ApprovedBy, v.ApprovedAt = status, &approver, &now
		p = applied(p, v, now)
	}
	if event == eventRevert {
		if res.Superseded, err = e.supersedeAfter(ctx, tx, actor, v); err != nil {
			return VersionResult{}, err
		}
	}

	entry := events.Entry{PageID: p.ID, EntityKind: "version", EntityID: v.ID, ActorID: actor.ID}
	switch event {
	case eventApprove:
		entry.Type = events.VersionApproved
	case eventReject:
		entry.Type = events.VersionRejected
	case eventRevert:
		entry.Type = events.VersionReverted
		entry.Payload = events.EventPayload{"superseded": len(res.Superseded)}
	}
	if err := e.appendEvent(ctx, tx, entry); err != nil {
		return VersionResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return VersionResult{}, err
	}
	res.Page = definitions.SyncPage(p, def)
	res.Version = v
	return res, nil
}

func (e Engine) applyVersion(ctx context.Context, tx *sql.Tx, v domain.PageVersion, expected, now time.Time) error {
	err := e.Repo.ApplyVersion(ctx, tx, v, expected, now)
	switch {
	case errors.Is(err, repo.ErrStale):
		e.Metrics.Conflict()
		return ConflictError{PageID: v.PageID, Reason: "page changed while applying version"}
	case errors.Is(err, repo.ErrSlugTaken):
		return ValidationError{Field: "slug", Reason: v.Slug + " is already in use"}
	}
	return err
}

// supersedeAfter rejects the versions ordered after v and returns their ids.
func (e Engine) supersedeAfter(ctx context.Context, tx *sql.Tx, actor auth.Actor, v domain.PageVersion) ([]string, error) {
	later, err := e.Repo.VersionsAfter(ctx, tx, v.PageID, v.CreatedAt, v.Seq)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(later))
	for _, lv := range later {
		status, err := transition(ctx, lv, eventSupersede)
		if err != nil {
			return nil, err
		}
		if err := e.Repo.SetVersionStatus(ctx, tx, lv.ID, status, nil, nil); err != nil {
			return nil, err
		}
		if err := e.appendEvent(ctx, tx, events.Entry{
			Type: events.VersionSupersede, PageID: v.PageID, EntityKind: "version", EntityID: lv.ID, ActorID: actor.ID,
			Payload: events.EventPayload{"reverted_to": v.ID},
		}); err != nil {
			return nil, err
		}
		ids = append(ids, lv.ID)
	}
	return ids, nil
}

func applied(p domain.Page, v domain.PageVersion, now time.Time) domain.Page {
	p.Slug = v.Slug
	p.Title = v.Title
	p.Description = v.Description
	p.Tags = v.Tags
	p.AuthorIDs = v.AuthorIDs
	p.Content = v.Content
	p.PostedAt = v.PostedAt
	p.UpdatedAt = now
	return p
}

func outcome(err error) string {
	var invalid InvalidStateError
	var conflict ConflictError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &invalid):
		return "invalid_state"
	case errors.As(err, &conflict):
		return "conflict"
	default:
		return "error"
	}
}
