package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pagewright/internal/db"
	"pagewright/internal/domain"
)

const versionColumns = `id,page_id,seq,status,slug,type,title_json,description_json,tags_json,author_ids_json,content_json,posted_at,created_by,approved_by,approved_at,created_at`

func scanVersion(row scanner) (domain.PageVersion, error) {
	var v domain.PageVersion
	var status string
	var title, desc, tags, authors, content sql.NullString
	var posted, approvedBy, approvedAt sql.NullString
	var created string
	if err := row.Scan(&v.ID, &v.PageID, &v.Seq, &status, &v.Slug, &v.Type, &title, &desc, &tags, &authors, &content,
		&posted, &v.CreatedBy, &approvedBy, &approvedAt, &created); err != nil {
		if err == sql.ErrNoRows {
			return v, ErrNotFound
		}
		return v, err
	}
	v.Status = domain.VersionStatus(status)
	for _, col := range []struct {
		raw sql.NullString
		dst any
	}{
		{title, &v.Title},
		{desc, &v.Description},
		{tags, &v.Tags},
		{authors, &v.AuthorIDs},
		{content, &v.Content},
	} {
		if err := decodeJSON(col.raw, col.dst); err != nil {
			return v, fmt.Errorf("version %s: %w", v.ID, err)
		}
	}
	if approvedBy.Valid {
		s := approvedBy.String
		v.ApprovedBy = &s
	}
	var err error
	if v.PostedAt, err = parseNullTime(posted); err != nil {
		return v, err
	}
	if v.ApprovedAt, err = parseNullTime(approvedAt); err != nil {
		return v, err
	}
	if v.CreatedAt, err = db.ParseTime(created); err != nil {
		return v, err
	}
	if v.Tags == nil {
		v.Tags = []domain.Localized{}
	}
	if v.AuthorIDs == nil {
		v.AuthorIDs = []string{}
	}
	if v.Content.Blocks == nil {
		v.Content.Blocks = []domain.Block{}
	}
	if v.Content.Properties == nil {
		v.Content.Properties = domain.Properties{}
	}
	return v, nil
}

// InsertVersion stores v with the next sequence number of its page and
// returns it with Seq set. Run it inside the transaction that owns the page.
func (r Repo) InsertVersion(ctx context.Context, tx *sql.Tx, v domain.PageVersion) (domain.PageVersion, error) {
	q := r.q(tx)
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq),0)+1 FROM page_versions WHERE page_id=?`, v.PageID).Scan(&v.Seq); err != nil {
		return v, err
	}
	cols, err := encodeSnapshot(v.Title, v.Description, v.Tags, v.AuthorIDs, v.Content)
	if err != nil {
		return v, err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO page_versions(`+versionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		v.ID, v.PageID, v.Seq, string(v.Status), v.Slug, v.Type, cols.title, cols.description, cols.tags, cols.authors, cols.content,
		nullableTime(v.PostedAt), v.CreatedBy, nullableStringPtr(v.ApprovedBy), nullableTime(v.ApprovedAt), db.FormatTime(v.CreatedAt))
	return v, err
}

func (r Repo) GetVersion(ctx context.Context, tx *sql.Tx, id string) (domain.PageVersion, error) {
	return scanVersion(r.q(tx).QueryRowContext(ctx, `SELECT `+versionColumns+` FROM page_versions WHERE id=?`, id))
}

// ListVersions returns every version of a page, newest first.
func (r Repo) ListVersions(ctx context.Context, tx *sql.Tx, pageID string) ([]domain.PageVersion, error) {
	return r.queryVersions(ctx, tx, `SELECT `+versionColumns+` FROM page_versions WHERE page_id=? ORDER BY created_at DESC, seq DESC`, pageID)
}

// VersionsAfter returns the non-rejected versions of a page ordered after
// (createdAt, seq), oldest first.
func (r Repo) VersionsAfter(ctx context.Context, tx *sql.Tx, pageID string, createdAt time.Time, seq int64) ([]domain.PageVersion, error) {
	ts := db.FormatTime(createdAt)
	return r.queryVersions(ctx, tx, `SELECT `+versionColumns+` FROM page_versions
WHERE page_id=? AND status<>'rejected' AND (created_at>? OR (created_at=? AND seq>?))
ORDER BY created_at ASC, seq ASC`, pageID, ts, ts, seq)
}

func (r Repo) queryVersions(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]domain.PageVersion, error) {
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.PageVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// SetVersionStatus records a status change. Approval fields are overwritten
// only when approvedBy is non-nil.
func (r Repo) SetVersionStatus(ctx context.Context, tx *sql.Tx, id string, status domain.VersionStatus, approvedBy *string, approvedAt *time.Time) error {
	var res sql.Result
	var err error
	if approvedBy != nil {
		res, err = r.q(tx).ExecContext(ctx, `UPDATE page_versions SET status=?,approved_by=?,approved_at=? WHERE id=?`,
			string(status), *approvedBy, nullableTime(approvedAt), id)
	} else {
		res, err = r.q(tx).ExecContext(ctx, `UPDATE page_versions SET status=? WHERE id=?`, string(status), id)
	}
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
