package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"pagewright/internal/domain"
)

func TestVersionTransitions(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		from  domain.VersionStatus
		event string
		to    domain.VersionStatus
		ok    bool
	}{
		{domain.VersionPending, eventApprove, domain.VersionApproved, true},
		{domain.VersionApproved, eventApprove, "", false},
		{domain.VersionRejected, eventApprove, "", false},
		{domain.VersionPending, eventReject, domain.VersionRejected, true},
		{domain.VersionApproved, eventReject, "", false},
		{domain.VersionPending, eventRevert, domain.VersionApproved, true},
		{domain.VersionApproved, eventRevert, domain.VersionApproved, true},
		{domain.VersionRejected, eventRevert, "", false},
		{domain.VersionPending, eventSupersede, domain.VersionRejected, true},
		{domain.VersionApproved, eventSupersede, domain.VersionRejected, true},
	}
	for _, tc := range cases {
		got, err := transition(ctx, domain.PageVersion{ID: "v", Status: tc.from}, tc.event)
		if !tc.ok {
			var invalid InvalidStateError
			assert.True(t, errors.As(err, &invalid), "%s from %s", tc.event, tc.from)
			continue
		}
		assert.NoError(t, err, "%s from %s", tc.event, tc.from)
		assert.Equal(t, tc.to, got, "%s from %s", tc.event, tc.from)
	}
}
