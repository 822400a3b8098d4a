package shared

import (
	"errors"
	"time"
)

// ApprovalAction enumerates approval log actions.
type ApprovalAction string

const (
	// ApprovalSubmit marks a submit action.
	ApprovalSubmit ApprovalAction = "SUBMIT"
	// ApprovalApprove marks an approve action.
	ApprovalApprove ApprovalAction = "APPROVE"
	// ApprovalReject marks a reject action.
	ApprovalReject ApprovalAction = "REJECT"
)

// ApprovalLog represents a single entry in a request's approval history.
type ApprovalLog struct {
	ID        int64          `json:"id"`
	RequestID int64          `json:"requestId"`
	ActorID   int64          `json:"actorId"`
	Action    ApprovalAction `json:"action"`
	Note      string         `json:"note,omitempty"`
	At        time.Time      `json:"at"`
}

// Validate checks the entry before it is persisted.
func (l ApprovalLog) Validate() error {
	if l.RequestID == 0 {
		return errors.New("approval request id required")
	}
	if l.ActorID == 0 {
		return errors.New("approval actor required")
	}
	switch l.Action {
	case ApprovalSubmit, ApprovalApprove, ApprovalReject:
		return nil
	case "":
		return errors.New("approval action required")
	default:
		return errors.New("approval action unknown: " + string(l.Action))
	}
}
