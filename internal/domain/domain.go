package domain

import "time"

// Localized maps a locale code to text.
type Localized map[string]string

// DefaultLocale is used when a single locale is needed, e.g. to order by title.
const DefaultLocale = "en"

// Properties is the typed properties bag of a page: group -> field -> value.
type Properties map[string]map[string]any

type Block struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Props       map[string]any `json:"props,omitempty"`
	Children    []Block        `json:"children,omitempty"`
	IsTemplated bool           `json:"is_templated,omitempty"`
}

type Content struct {
	Blocks     []Block    `json:"blocks"`
	Properties Properties `json:"properties"`
}

type Page struct {
	ID          string      `json:"id"`
	Slug        string      `json:"slug"`
	Type        string      `json:"type"`
	Title       Localized   `json:"title"`
	Description Localized   `json:"description,omitempty"`
	Tags        []Localized `json:"tags"`
	AuthorIDs   []string    `json:"author_ids"`
	Content     Content     `json:"content"`
	PostedAt    *time.Time  `json:"posted_at" format:"date-time" nullable:"true"`
	DeletedAt   *time.Time  `json:"deleted_at,omitempty" format:"date-time"`
	CreatedAt   time.Time   `json:"created_at" format:"date-time"`
	UpdatedAt   time.Time   `json:"updated_at" format:"date-time"`
}

// Published reports whether the page has a posted date and is not deleted.
func (p Page) Published() bool {
	return p.PostedAt != nil && p.DeletedAt == nil
}

type PageSlug struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Slug      string `json:"slug"`
	Published bool   `json:"published"`
}

type VersionStatus string

const (
	VersionPending  VersionStatus = "pending"
	VersionApproved VersionStatus = "approved"
	VersionRejected VersionStatus = "rejected"
)

// PageVersion is an immutable snapshot of page fields proposed as an edit.
// Only Status, ApprovedBy and ApprovedAt change after insert.
type PageVersion struct {
	ID          string        `json:"id"`
	PageID      string        `json:"page_id"`
	Seq         int64         `json:"seq"`
	Status      VersionStatus `json:"status" enum:"pending,approved,rejected"`
	Slug        string        `json:"slug"`
	Type        string        `json:"type"`
	Title       Localized     `json:"title"`
	Description Localized     `json:"description,omitempty"`
	Tags        []Localized   `json:"tags"`
	AuthorIDs   []string      `json:"author_ids"`
	Content     Content       `json:"content"`
	PostedAt    *time.Time    `json:"posted_at" format:"date-time" nullable:"true"`
	CreatedBy   string        `json:"created_by"`
	ApprovedBy  *string       `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time    `json:"approved_at,omitempty" format:"date-time"`
	CreatedAt   time.Time     `json:"created_at" format:"date-time"`
}

type Actor struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64     `json:"id"`
	TS         time.Time `json:"ts" format:"date-time"`
	Type       string    `json:"type"`
	PageID     string    `json:"page_id,omitempty"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	Payload    string    `json:"payload"`
}

type APIKey struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Name      string    `json:"name,omitempty"`
	KeyHash   string    `json:"key_hash"`
	CreatedAt time.Time `json:"created_at" format:"date-time"`
}
