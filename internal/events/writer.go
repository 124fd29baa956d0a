package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"pagewright/internal/db"
)

// Event types written to the audit log.
const (
	PageCreated      = "page.created"
	PagePublished    = "page.published"
	PageDeleted      = "page.deleted"
	PagePurged       = "page.purged"
	VersionProposed  = "version.proposed"
	VersionApproved  = "version.approved"
	VersionRejected  = "version.rejected"
	VersionReverted  = "version.reverted"
	VersionSupersede = "version.superseded"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Entry is one audit row. PageID stays set after the page is purged.
type Entry struct {
	Type       string
	PageID     string
	EntityKind string
	EntityID   string
	ActorID    string
	Payload    EventPayload
}

// Append writes an event inside tx so it commits with the change it records.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	payload := e.Payload
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,page_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		db.FormatTime(now()), e.Type, nullable(e.PageID), e.EntityKind, nullable(e.EntityID), e.ActorID, string(data))
	if err != nil {
		return fmt.Errorf("append event %s: %w", e.Type, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
