package auth

import (
	"fmt"
	"strings"
)

// Role is an actor's privilege level. Each role includes the ones below it.
type Role string

const (
	RoleUser   Role = "user"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

var roleRank = map[Role]int{
	RoleUser:   1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// ParseRole accepts a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// AtLeast reports whether r includes min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

type Action string

const (
	ActionPageRead        Action = "page.read"
	ActionPageReadDrafts  Action = "page.read.drafts"
	ActionPageReadDeleted Action = "page.read.deleted"
	ActionPageCreate      Action = "page.create"
	ActionPagePublish     Action = "page.publish"
	ActionPageDelete      Action = "page.delete"
	ActionVersionPropose  Action = "version.propose"
	ActionVersionRead     Action = "version.read"
	ActionVersionApprove  Action = "version.approve"
	ActionVersionReject   Action = "version.reject"
	ActionVersionRevert   Action = "version.revert"
	ActionEventsRead      Action = "events.read"
	ActionDefinitionsRead Action = "definitions.read"
)

// minRole is the lowest role allowed to perform an action. An empty role
// means anonymous callers are allowed.
var minRole = map[Action]Role{
	ActionPageRead:        "",
	ActionDefinitionsRead: "",
	ActionVersionRead:     RoleUser,
	ActionPageReadDrafts:  RoleMember,
	ActionPageCreate:      RoleMember,
	ActionPagePublish:     RoleMember,
	ActionVersionPropose:  RoleMember,
	ActionPageReadDeleted: RoleAdmin,
	ActionVersionApprove:  RoleAdmin,
	ActionVersionReject:   RoleAdmin,
	ActionVersionRevert:   RoleAdmin,
	ActionEventsRead:      RoleAdmin,
	ActionPageDelete:      RoleOwner,
}

// Actor is the authenticated caller. The zero value is anonymous.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Anonymous() bool { return a.ID == "" }

// UnauthenticatedError means the action needs a signed-in caller.
type UnauthenticatedError struct {
	Action Action
}

func (e UnauthenticatedError) Error() string {
	return fmt.Sprintf("authentication required for %s", e.Action)
}

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Action Action
	Role   Role
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("role %s may not %s", e.Role, e.Action)
}

// Can reports whether the actor may perform the action.
func Can(a Actor, action Action) bool {
	return Authorize(a, action) == nil
}

// Authorize returns nil when the actor may perform the action, an
// UnauthenticatedError for anonymous callers of a protected action and a
// ForbiddenError otherwise. Unknown actions are denied.
func Authorize(a Actor, action Action) error {
	min, known := minRole[action]
	if !known {
		return ForbiddenError{Action: action, Role: a.Role}
	}
	if min == "" {
		return nil
	}
	if a.Anonymous() {
		return UnauthenticatedError{Action: action}
	}
	if !a.Role.AtLeast(min) {
		return ForbiddenError{Action: action, Role: a.Role}
	}
	return nil
}
