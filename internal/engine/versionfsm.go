package engine

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"pagewright/internal/domain"
)

const (
	eventApprove   = "approve"
	eventReject    = "reject"
	eventRevert    = "revert"
	eventSupersede = "supersede"
)

var versionEvents = fsm.Events{
	{Name: eventApprove, Src: []string{string(domain.VersionPending)}, Dst: string(domain.VersionApproved)},
	{Name: eventReject, Src: []string{string(domain.VersionPending)}, Dst: string(domain.VersionRejected)},
	{Name: eventRevert, Src: []string{string(domain.VersionPending), string(domain.VersionApproved)}, Dst: string(domain.VersionApproved)},
	{Name: eventSupersede, Src: []string{string(domain.VersionPending), string(domain.VersionApproved)}, Dst: string(domain.VersionRejected)},
}

// transition returns the status v moves to on event. Rejected is terminal.
// Reverting to an approved version keeps it approved.
func transition(ctx context.Context, v domain.PageVersion, event string) (domain.VersionStatus, error) {
	machine := fsm.NewFSM(string(v.Status), versionEvents, fsm.Callbacks{})
	err := machine.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	var invalid fsm.InvalidEventError
	switch {
	case err == nil, errors.As(err, &noTransition):
		return domain.VersionStatus(machine.Current()), nil
	case errors.As(err, &invalid):
		return "", InvalidStateError{VersionID: v.ID, Status: v.Status, Event: event}
	default:
		return "", err
	}
}
