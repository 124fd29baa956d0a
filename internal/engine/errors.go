package engine

import (
	"fmt"

	"pagewright/internal/domain"
)

// ValidationError reports a malformed input field. Nothing was written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports a version event not allowed from its status.
type InvalidStateError struct {
	VersionID string
	Status    domain.VersionStatus
	Event     string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s version %s in status %s", e.Event, e.VersionID, e.Status)
}

// ConflictError reports a write that lost a race with another write to the
// same page.
type ConflictError struct {
	PageID string
	Reason string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("page %s: %s", e.PageID, e.Reason)
}

// DefinitionMissingError reports a stored page whose type is not registered.
type DefinitionMissingError struct {
	PageID string
	Type   string
}

func (e DefinitionMissingError) Error() string {
	return fmt.Sprintf("page %s has type %s with no registered definition", e.PageID, e.Type)
}
