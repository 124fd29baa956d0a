package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeBoundaries(t *testing.T) {
	anon := Actor{}
	user := Actor{ID: "u", Role: RoleUser}
	member := Actor{ID: "m", Role: RoleMember}
	admin := Actor{ID: "a", Role: RoleAdmin}
	owner := Actor{ID: "o", Role: RoleOwner}

	cases := []struct {
		action  Action
		allowed []Actor
		denied  []Actor
	}{
		{ActionPageRead, []Actor{anon, user, member, admin, owner}, nil},
		{ActionVersionRead, []Actor{user, member, admin, owner}, []Actor{anon}},
		{ActionVersionPropose, []Actor{member, admin, owner}, []Actor{anon, user}},
		{ActionPageCreate, []Actor{member, admin, owner}, []Actor{anon, user}},
		{ActionVersionApprove, []Actor{admin, owner}, []Actor{anon, user, member}},
		{ActionVersionRevert, []Actor{admin, owner}, []Actor{anon, user, member}},
		{ActionPageReadDeleted, []Actor{admin, owner}, []Actor{user, member}},
		{ActionPageDelete, []Actor{owner}, []Actor{anon, user, member, admin}},
	}
	for _, tc := range cases {
		for _, a := range tc.allowed {
			assert.True(t, Can(a, tc.action), "%s should be allowed for %q", tc.action, a.Role)
		}
		for _, a := range tc.denied {
			assert.False(t, Can(a, tc.action), "%s should be denied for %q", tc.action, a.Role)
		}
	}
}

func TestAuthorizeErrorKinds(t *testing.T) {
	err := Authorize(Actor{}, ActionVersionApprove)
	var unauth UnauthenticatedError
	require.True(t, errors.As(err, &unauth))

	err = Authorize(Actor{ID: "m", Role: RoleMember}, ActionVersionApprove)
	var forbidden ForbiddenError
	require.True(t, errors.As(err, &forbidden))
	assert.Equal(t, ActionVersionApprove, forbidden.Action)

	assert.Error(t, Authorize(Actor{ID: "o", Role: RoleOwner}, Action("page.teleport")))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)
	_, err = ParseRole("superuser")
	assert.Error(t, err)
	assert.True(t, RoleOwner.AtLeast(RoleMember))
	assert.False(t, RoleMember.AtLeast(RoleAdmin))
}
