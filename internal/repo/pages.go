package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pagewright/internal/db"
	"pagewright/internal/domain"
)

const pageColumns = `id,slug,type,title_json,description_json,tags_json,author_ids_json,content_json,posted_at,deleted_at,created_at,updated_at`

type PageStatus string

const (
	PageStatusAny       PageStatus = ""
	PageStatusPublished PageStatus = "published"
	PageStatusDraft     PageStatus = "draft"
)

type PageOrder string

const (
	OrderCreatedAt PageOrder = "created_at"
	OrderUpdatedAt PageOrder = "updated_at"
	OrderPostedAt  PageOrder = "posted_at"
	OrderTitle     PageOrder = "title"
)

// PageFilters narrows ListPages and ListSlugs. Soft-deleted pages are
// excluded unless IncludeDeleted is set.
type PageFilters struct {
	Type           string
	Status         PageStatus
	IncludeDeleted bool
	OrderBy        PageOrder
	Desc           bool
	Locale         string
	Limit          int
	Offset         int
}

func scanPage(row scanner) (domain.Page, error) {
	var p domain.Page
	var title, desc, tags, authors, content sql.NullString
	var posted, deleted sql.NullString
	var created, updated string
	if err := row.Scan(&p.ID, &p.Slug, &p.Type, &title, &desc, &tags, &authors, &content, &posted, &deleted, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return p, ErrNotFound
		}
		return p, err
	}
	for _, col := range []struct {
		raw sql.NullString
		dst any
	}{
		{title, &p.Title},
		{desc, &p.Description},
		{tags, &p.Tags},
		{authors, &p.AuthorIDs},
		{content, &p.Content},
	} {
		if err := decodeJSON(col.raw, col.dst); err != nil {
			return p, fmt.Errorf("page %s: %w", p.ID, err)
		}
	}
	var err error
	if p.PostedAt, err = parseNullTime(posted); err != nil {
		return p, err
	}
	if p.DeletedAt, err = parseNullTime(deleted); err != nil {
		return p, err
	}
	if p.CreatedAt, err = db.ParseTime(created); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = db.ParseTime(updated); err != nil {
		return p, err
	}
	normalizePage(&p)
	return p, nil
}

func normalizePage(p *domain.Page) {
	if p.Title == nil {
		p.Title = domain.Localized{}
	}
	if p.Tags == nil {
		p.Tags = []domain.Localized{}
	}
	if p.AuthorIDs == nil {
		p.AuthorIDs = []string{}
	}
	if p.Content.Blocks == nil {
		p.Content.Blocks = []domain.Block{}
	}
	if p.Content.Properties == nil {
		p.Content.Properties = domain.Properties{}
	}
}

type snapshotColumns struct {
	title, desc, tags, authors, content string
	description                         any
}

func encodeSnapshot(title, desc domain.Localized, tags []domain.Localized, authors []string, content domain.Content) (snapshotColumns, error) {
	var out snapshotColumns
	var err error
	if title == nil {
		title = domain.Localized{}
	}
	if tags == nil {
		tags = []domain.Localized{}
	}
	if authors == nil {
		authors = []string{}
	}
	if out.title, err = encodeJSON(title); err != nil {
		return out, err
	}
	if desc != nil {
		if out.desc, err = encodeJSON(desc); err != nil {
			return out, err
		}
		out.description = out.desc
	}
	if out.tags, err = encodeJSON(tags); err != nil {
		return out, err
	}
	if out.authors, err = encodeJSON(authors); err != nil {
		return out, err
	}
	if out.content, err = encodeJSON(content); err != nil {
		return out, err
	}
	return out, nil
}

func (r Repo) InsertPage(ctx context.Context, tx *sql.Tx, p domain.Page) error {
	cols, err := encodeSnapshot(p.Title, p.Description, p.Tags, p.AuthorIDs, p.Content)
	if err != nil {
		return err
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO pages(`+pageColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Slug, p.Type, cols.title, cols.description, cols.tags, cols.authors, cols.content,
		nullableTime(p.PostedAt), nullableTime(p.DeletedAt), db.FormatTime(p.CreatedAt), db.FormatTime(p.UpdatedAt))
	if isUniqueViolation(err, "pages.slug") {
		return ErrSlugTaken
	}
	return err
}

// GetPage returns a page by id, including soft-deleted pages.
func (r Repo) GetPage(ctx context.Context, tx *sql.Tx, id string) (domain.Page, error) {
	return scanPage(r.q(tx).QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id=?`, id))
}

// GetPageBySlug returns a page by slug, including soft-deleted pages.
func (r Repo) GetPageBySlug(ctx context.Context, tx *sql.Tx, slug string) (domain.Page, error) {
	return scanPage(r.q(tx).QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE slug=?`, slug))
}

// SlugTaken reports whether a page other than exceptID uses slug.
func (r Repo) SlugTaken(ctx context.Context, tx *sql.Tx, slug, exceptID string) (bool, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE slug=? AND id<>?`, slug, exceptID).Scan(&n)
	return n > 0, err
}

func pageWhere(f PageFilters) (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	switch f.Status {
	case PageStatusPublished:
		clauses = append(clauses, "posted_at IS NOT NULL")
	case PageStatusDraft:
		clauses = append(clauses, "posted_at IS NULL")
	}
	if !f.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func pageOrder(f PageFilters) (string, []any) {
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	switch f.OrderBy {
	case OrderTitle:
		locale := f.Locale
		if locale == "" {
			locale = domain.DefaultLocale
		}
		return fmt.Sprintf(`ORDER BY json_extract(title_json, ?) %s, id %s`, dir, dir), []any{`$."` + locale + `"`}
	case OrderPostedAt:
		return fmt.Sprintf(`ORDER BY posted_at %s, id %s`, dir, dir), nil
	case OrderUpdatedAt:
		return fmt.Sprintf(`ORDER BY updated_at %s, id %s`, dir, dir), nil
	default:
		return fmt.Sprintf(`ORDER BY created_at %s, id %s`, dir, dir), nil
	}
}

// ListPages returns one page of results and the total number of matches.
func (r Repo) ListPages(ctx context.Context, f PageFilters) ([]domain.Page, int, error) {
	where, args := pageWhere(f)
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	order, orderArgs := pageOrder(f)
	query := `SELECT ` + pageColumns + ` FROM pages ` + where + ` ` + order + ` LIMIT ? OFFSET ?`
	all := append(append(append([]any{}, args...), orderArgs...), f.Limit, f.Offset)
	rows, err := r.DB.QueryContext(ctx, query, all...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res := []domain.Page{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

func (r Repo) ListSlugs(ctx context.Context, f PageFilters) ([]domain.PageSlug, error) {
	where, args := pageWhere(f)
	rows, err := r.DB.QueryContext(ctx, `SELECT id,type,slug,posted_at IS NOT NULL FROM pages `+where+` ORDER BY slug ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.PageSlug{}
	for rows.Next() {
		var s domain.PageSlug
		if err := rows.Scan(&s.ID, &s.Type, &s.Slug, &s.Published); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// ApplyVersion copies the snapshot fields of v onto its page. The write only
// happens when the page still carries expectedUpdatedAt; otherwise ErrStale.
func (r Repo) ApplyVersion(ctx context.Context, tx *sql.Tx, v domain.PageVersion, expectedUpdatedAt, now time.Time) error {
	cols, err := encodeSnapshot(v.Title, v.Description, v.Tags, v.AuthorIDs, v.Content)
	if err != nil {
		return err
	}
	res, err := r.q(tx).ExecContext(ctx, `UPDATE pages SET slug=?,title_json=?,description_json=?,tags_json=?,author_ids_json=?,content_json=?,posted_at=?,updated_at=?
WHERE id=? AND updated_at=? AND deleted_at IS NULL`,
		v.Slug, cols.title, cols.description, cols.tags, cols.authors, cols.content, nullableTime(v.PostedAt), db.FormatTime(now),
		v.PageID, db.FormatTime(expectedUpdatedAt))
	if isUniqueViolation(err, "pages.slug") {
		return ErrSlugTaken
	}
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// SetPosted sets posted_at on a live page under the same optimistic guard.
func (r Repo) SetPosted(ctx context.Context, tx *sql.Tx, id string, postedAt, expectedUpdatedAt, now time.Time) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE pages SET posted_at=?,updated_at=? WHERE id=? AND updated_at=? AND deleted_at IS NULL`,
		db.FormatTime(postedAt), db.FormatTime(now), id, db.FormatTime(expectedUpdatedAt))
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r Repo) SoftDeletePage(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE pages SET deleted_at=?,updated_at=? WHERE id=? AND deleted_at IS NULL`,
		db.FormatTime(now), db.FormatTime(now), id)
	return err
}

// DeletePage removes a page row; its versions go with it.
func (r Repo) DeletePage(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM pages WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	return nil
}
