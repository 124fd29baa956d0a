package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pagewright/internal/domain"
	"pagewright/internal/engine/auth"
	"pagewright/internal/events"
	"pagewright/internal/repo"
)

// PageCreateOptions are parameters for creating a page. Nil Blocks take the
// definition's initial blocks; nil AuthorIDs default to the caller.
type PageCreateOptions struct {
	Type        string
	Slug        string
	Title       domain.Localized
	Description domain.Localized
	Tags        []domain.Localized
	AuthorIDs   []string
	Blocks      []domain.Block
	Properties  domain.Properties
}

func (e Engine) CreatePage(ctx context.Context, actor auth.Actor, opts PageCreateOptions) (domain.Page, error) {
	if err := auth.Authorize(actor, auth.ActionPageCreate); err != nil {
		return domain.Page{}, err
	}
	def, err := e.Defs.Lookup(opts.Type)
	if err != nil {
		return domain.Page{}, ValidationError{Field: "type", Reason: err.Error()}
	}
	if err := validateSlug(opts.Slug); err != nil {
		return domain.Page{}, err
	}
	if err := validateTitle(opts.Title); err != nil {
		return domain.Page{}, err
	}
	content := domain.Content{Blocks: opts.Blocks, Properties: opts.Properties}
	if content.Blocks == nil {
		content.Blocks = def.Blocks()
	}
	if content.Properties == nil {
		content.Properties = domain.Properties{}
	}
	authors := opts.AuthorIDs
	if authors == nil {
		authors = []string{actor.ID}
	}
	tags := opts.Tags
	if tags == nil {
		tags = []domain.Localized{}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Page{}, err
	}
	defer tx.Rollback()

	if err := e.checkSlugFree(ctx, tx, opts.Slug, ""); err != nil {
		return domain.Page{}, err
	}
	if err := e.validateContent(ctx, tx, content, def); err != nil {
		return domain.Page{}, err
	}
	if err := e.ensureActor(ctx, tx, actor); err != nil {
		return domain.Page{}, err
	}
	now := e.now()
	p := domain.Page{
		ID:          newID(),
		Slug:        opts.Slug,
		Type:        opts.Type,
		Title:       opts.Title,
		Description: opts.Description,
		Tags:        tags,
		AuthorIDs:   authors,
		Content:     content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertPage(ctx, tx, p); err != nil {
		if errors.Is(err, repo.ErrSlugTaken) {
			return domain.Page{}, ValidationError{Field: "slug", Reason: opts.Slug + " is already in use"}
		}
		return domain.Page{}, err
	}
	if err := e.appendEvent(ctx, tx, events.Entry{
		Type: events.PageCreated, PageID: p.ID, EntityKind: "page", EntityID: p.ID, ActorID: actor.ID,
		Payload: events.EventPayload{"type": p.Type, "slug": p.Slug},
	}); err != nil {
		return domain.Page{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Page{}, err
	}
	e.logger().Info("page created", zap.String("page_id", p.ID), zap.String("type", p.Type), zap.String("actor_id", actor.ID))
	return e.synced(p)
}

// visible reports whether the caller may see the page. Drafts need
// page.read.drafts and deleted pages need page.read.deleted.
func visible(actor auth.Actor, p domain.Page, allowDeleted bool) bool {
	if p.Published() {
		return true
	}
	if p.DeletedAt != nil {
		return allowDeleted && auth.Can(actor, auth.ActionPageReadDeleted)
	}
	return auth.Can(actor, auth.ActionPageReadDrafts)
}

// GetPage returns a live page by type and slug, synced with its definition.
func (e Engine) GetPage(ctx context.Context, actor auth.Actor, pageType, slug string) (domain.Page, error) {
	if err := auth.Authorize(actor, auth.ActionPageRead); err != nil {
		return domain.Page{}, err
	}
	p, err := e.Repo.GetPageBySlug(ctx, nil, slug)
	if err != nil {
		return domain.Page{}, wrapNotFound(err, "page", pageType+"/"+slug)
	}
	if p.Type != pageType || !visible(actor, p, false) {
		return domain.Page{}, notFound("page", pageType+"/"+slug)
	}
	return e.synced(p)
}

// FindPage returns a live page by slug alone.
func (e Engine) FindPage(ctx context.Context, actor auth.Actor, slug string) (domain.Page, error) {
	if err := auth.Authorize(actor, auth.ActionPageRead); err != nil {
		return domain.Page{}, err
	}
	p, err := e.Repo.GetPageBySlug(ctx, nil, slug)
	if err != nil {
		return domain.Page{}, wrapNotFound(err, "page", slug)
	}
	if !visible(actor, p, false) {
		return domain.Page{}, notFound("page", slug)
	}
	return e.synced(p)
}

// GetPageByID returns a page by id. Soft-deleted pages are visible to admins.
func (e Engine) GetPageByID(ctx context.Context, actor auth.Actor, id string) (domain.Page, error) {
	if err := auth.Authorize(actor, auth.ActionPageRead); err != nil {
		return domain.Page{}, err
	}
	p, err := e.Repo.GetPage(ctx, nil, id)
	if err != nil {
		return domain.Page{}, wrapNotFound(err, "page", id)
	}
	if !visible(actor, p, true) {
		return domain.Page{}, notFound("page", id)
	}
	return e.synced(p)
}

type PageListOptions struct {
	Type    string
	Status  repo.PageStatus
	OrderBy repo.PageOrder
	Asc     bool
	Locale  string
	Page    int
	Limit   int
}

type PageList struct {
	Items []domain.Page `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// ListPages lists live pages. Without a status filter, callers who cannot
// read drafts only see published pages.
func (e Engine) ListPages(ctx context.Context, actor auth.Actor, opts PageListOptions) (PageList, error) {
	if err := auth.Authorize(actor, auth.ActionPageRead); err != nil {
		return PageList{}, err
	}
	status := opts.Status
	switch status {
	case repo.PageStatusDraft:
		if err := auth.Authorize(actor, auth.ActionPageReadDrafts); err != nil {
			return PageList{}, err
		}
	case repo.PageStatusAny:
		if !auth.Can(actor, auth.ActionPageReadDrafts) {
			status = repo.PageStatusPublished
		}
	case repo.PageStatusPublished:
	default:
		return PageList{}, ValidationError{Field: "status", Reason: "must be published or draft"}
	}
	switch opts.OrderBy {
	case "":
		opts.OrderBy = repo.OrderPostedAt
	case repo.OrderPostedAt, repo.OrderCreatedAt, repo.OrderUpdatedAt, repo.OrderTitle:
	default:
		return PageList{}, ValidationError{Field: "order_by", Reason: "must be title, posted_at, created_at or updated_at"}
	}
	if err := validateLocale(opts.Locale); err != nil {
		return PageList{}, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}
	items, total, err := e.Repo.ListPages(ctx, repo.PageFilters{
		Type:    opts.Type,
		Status:  status,
		OrderBy: opts.OrderBy,
		Desc:    !opts.Asc,
		Locale:  opts.Locale,
		Limit:   limit,
		Offset:  (page - 1) * limit,
	})
	if err != nil {
		return PageList{}, err
	}
	out := PageList{Items: make([]domain.Page, 0, len(items)), Total: total, Page: page, Limit: limit}
	for _, p := range items {
		sp, err := e.synced(p)
		if err != nil {
			return PageList{}, err
		}
		out.Items = append(out.Items, sp)
	}
	return out, nil
}

// ListSlugs returns slugs of live pages, published only unless the caller
// can read drafts.
func (e Engine) ListSlugs(ctx context.Context, actor auth.Actor, pageType string) ([]domain.PageSlug, error) {
	if err := auth.Authorize(actor, auth.ActionPageRead); err != nil {
		return nil, err
	}
	f := repo.PageFilters{Type: pageType, Status: repo.PageStatusPublished}
	if auth.Can(actor, auth.ActionPageReadDrafts) {
		f.Status = repo.PageStatusAny
	}
	return e.Repo.ListSlugs(ctx, f)
}

// PublishPage stamps posted_at with the current time. This bypasses review.
func (e Engine) PublishPage(ctx context.Context, actor auth.Actor, id string) (domain.Page, error) {
	if err := auth.Authorize(actor, auth.ActionPagePublish); err != nil {
		return domain.Page{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Page{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetPage(ctx, tx, id)
	if err != nil {
		return domain.Page{}, wrapNotFound(err, "page", id)
	}
	if p.DeletedAt != nil {
		return domain.Page{}, notFound("page", id)
	}
	now := e.now()
	if err := e.Repo.SetPosted(ctx, tx, id, now, p.UpdatedAt, now); err != nil {
		if errors.Is(err, repo.ErrStale) {
			e.Metrics.Conflict()
			return domain.Page{}, ConflictError{PageID: id, Reason: "page changed during publish"}
		}
		return domain.Page{}, err
	}
	if err := e.appendEvent(ctx, tx, events.Entry{
		Type: events.PagePublished, PageID: id, EntityKind: "page", EntityID: id, ActorID: actor.ID,
	}); err != nil {
		return domain.Page{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Page{}, err
	}
	p.PostedAt = &now
	p.UpdatedAt = now
	return e.synced(p)
}

// DeletePage soft-deletes a page, or removes it with its versions when hard
// is set. Soft-deleting an already deleted page succeeds without change.
func (e Engine) DeletePage(ctx context.Context, actor auth.Actor, id string, hard bool) error {
	if err := auth.Authorize(actor, auth.ActionPageDelete); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetPage(ctx, tx, id)
	if err != nil {
		return wrapNotFound(err, "page", id)
	}
	evt := events.Entry{PageID: id, EntityKind: "page", EntityID: id, ActorID: actor.ID, Payload: events.EventPayload{"slug": p.Slug}}
	switch {
	case hard:
		if err := e.Repo.DeletePage(ctx, tx, id); err != nil {
			return wrapNotFound(err, "page", id)
		}
		evt.Type = events.PagePurged
	case p.DeletedAt != nil:
		return nil
	default:
		if err := e.Repo.SoftDeletePage(ctx, tx, id, e.now()); err != nil {
			return err
		}
		evt.Type = events.PageDeleted
	}
	if err := e.appendEvent(ctx, tx, evt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.logger().Info("page deleted", zap.String("page_id", id), zap.Bool("hard", hard), zap.String("actor_id", actor.ID))
	return nil
}
