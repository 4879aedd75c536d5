package entities

import (
	"errors"
	"fmt"
	"time"
)

// QueueAction is an actor-driven event on a queue entry
type QueueAction string

const (
	ActionApprove         QueueAction = "approve"
	ActionRejectAdmission QueueAction = "reject_admission"
	ActionCall            QueueAction = "call"
	ActionComplete        QueueAction = "complete"
	ActionCancel          QueueAction = "cancel"
	ActionLabReject       QueueAction = "lab_reject"
)

// ErrInvalidTransition is returned when an action is not allowed from the current status
var ErrInvalidTransition = errors.New("invalid queue transition")

type transitionRule struct {
	from []QueueStatus
	to   QueueStatus
}

var queueTransitions = map[QueueAction]transitionRule{
	ActionApprove:         {from: []QueueStatus{QueueStatusPendingLabApproval}, to: QueueStatusWaiting},
	ActionRejectAdmission: {from: []QueueStatus{QueueStatusPendingLabApproval}, to: QueueStatusCancelled},
	ActionCall:            {from: []QueueStatus{QueueStatusWaiting}, to: QueueStatusInProgress},
	ActionComplete:        {from: []QueueStatus{QueueStatusInProgress}, to: QueueStatusComplete},
	ActionCancel:          {from: []QueueStatus{QueueStatusWaiting, QueueStatusInProgress}, to: QueueStatusCancelled},
	ActionLabReject: {
		from: []QueueStatus{QueueStatusPendingLabApproval, QueueStatusWaiting, QueueStatusInProgress},
		to:   QueueStatusRejected,
	},
}

// AllQueueActions lists every action in a stable order
var AllQueueActions = []QueueAction{
	ActionApprove,
	ActionRejectAdmission,
	ActionCall,
	ActionComplete,
	ActionCancel,
	ActionLabReject,
}

// NextStatus returns the status reached by applying action from the given status
func NextStatus(from QueueStatus, action QueueAction) (QueueStatus, bool) {
	rule, ok := queueTransitions[action]
	if !ok {
		return "", false
	}
	for _, s := range rule.from {
		if s == from {
			return rule.to, true
		}
	}
	return "", false
}

// Apply moves the entry through action at time now. The server assignment for
// a call must be set by the caller before Apply. On error the entry is unchanged.
func (e *QueueEntry) Apply(action QueueAction, now time.Time) error {
	from := e.Status
	to, ok := NextStatus(from, action)
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, from)
	}

	e.Status = to
	e.UpdatedAt = now

	if action == ActionCall && e.ServiceStartTime == nil {
		start := now
		e.ServiceStartTime = &start
	}

	if to.IsTerminal() && from == QueueStatusInProgress && e.ServiceEndTime == nil {
		end := now
		e.ServiceEndTime = &end
		wait := ServiceMinutes(e.ServiceStartTime, end)
		e.ActualWaitTime = &wait
	}
	return nil
}

// ServiceMinutes is the whole number of minutes from start to end, 0 when start is unknown
func ServiceMinutes(start *time.Time, end time.Time) int {
	if start == nil || end.Before(*start) {
		return 0
	}
	return int(end.Sub(*start) / time.Minute)
}
