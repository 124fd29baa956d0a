package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/EagleChen/mapmutex"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pagewright/internal/definitions"
	"pagewright/internal/domain"
	"pagewright/internal/engine/auth"
	"pagewright/internal/events"
	"pagewright/internal/metrics"
	"pagewright/internal/repo"
)

// Engine implements page and version operations on top of the repo. Every
// write runs in one transaction together with its audit event.
type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Defs    *definitions.Registry
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time

	locks *mapmutex.Mutex
}

func New(db *sql.DB, defs *definitions.Registry) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Defs:   defs,
		Logger: zap.NewNop(),
		Now:    time.Now,
		// backoff retries before a page is reported busy
		locks: mapmutex.NewCustomizedMapMutex(800, 100000000, 10, 1.1, 0.2),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, entry events.Entry) error {
	w := e.Events
	w.Now = e.now
	return w.Append(ctx, tx, entry)
}

func (e Engine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// lockPage serializes approve, reject and revert on one page.
func (e Engine) lockPage(pageID string) (func(), error) {
	if e.locks == nil {
		return func() {}, nil
	}
	if !e.locks.TryLock(pageID) {
		e.Metrics.Conflict()
		return nil, ConflictError{PageID: pageID, Reason: "another approval is in progress"}
	}
	return func() { e.locks.Unlock(pageID) }, nil
}

// definition looks up the definition of a stored page. A miss means stored
// data references a type that is not deployed.
func (e Engine) definition(p domain.Page) (definitions.PageDefinition, error) {
	def, err := e.Defs.Lookup(p.Type)
	if err != nil {
		e.Metrics.DefinitionMiss(p.Type)
		e.logger().Error("page type has no registered definition",
			zap.String("page_id", p.ID), zap.String("type", p.Type), zap.Error(err))
		return definitions.PageDefinition{}, DefinitionMissingError{PageID: p.ID, Type: p.Type}
	}
	return def, nil
}

func (e Engine) synced(p domain.Page) (domain.Page, error) {
	def, err := e.definition(p)
	if err != nil {
		return domain.Page{}, err
	}
	return definitions.SyncPage(p, def), nil
}

// ensureActor records the caller so roles can later be assigned to it.
func (e Engine) ensureActor(ctx context.Context, tx *sql.Tx, actor auth.Actor) error {
	if actor.Anonymous() {
		return nil
	}
	return e.Repo.EnsureActor(ctx, tx, actor.ID, e.now())
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, repo.ErrNotFound)
}

func wrapNotFound(err error, kind, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return notFound(kind, id)
	}
	return err
}
