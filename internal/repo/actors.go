package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pagewright/internal/db"
	"pagewright/internal/domain"
)

// EnsureActor records an actor with the default role if it is unknown.
func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, actorID string, now time.Time) error {
	if actorID == "" {
		return errors.New("actor_id required")
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO actors(id, role, created_at) VALUES (?,'user',?)`, actorID, db.FormatTime(now))
	return err
}

// SetActorRole creates or updates an actor with the given role.
func (r Repo) SetActorRole(ctx context.Context, tx *sql.Tx, actorID, role string, now time.Time) error {
	if actorID == "" {
		return errors.New("actor_id required")
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO actors(id, role, created_at) VALUES (?,?,?)
ON CONFLICT(id) DO UPDATE SET role=excluded.role`, actorID, role, db.FormatTime(now))
	return err
}

func (r Repo) GetActor(ctx context.Context, tx *sql.Tx, actorID string) (domain.Actor, error) {
	var a domain.Actor
	var created string
	err := r.q(tx).QueryRowContext(ctx, `SELECT id, role, created_at FROM actors WHERE id=?`, actorID).Scan(&a.ID, &a.Role, &created)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.CreatedAt, err = db.ParseTime(created)
	return a, err
}

func (r Repo) ListActors(ctx context.Context) ([]domain.Actor, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, role, created_at FROM actors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Actor{}
	for rows.Next() {
		var a domain.Actor
		var created string
		if err := rows.Scan(&a.ID, &a.Role, &created); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = db.ParseTime(created); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
