// Package requests implements the maker/checker request lifecycle: makers
// submit, checkers approve or reject, and every step is gated by rbac.
package requests

import (
	"time"

	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/shared"
)

// Status is the lifecycle state of a request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusBidding  Status = "bidding"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Active reports whether a decision may still be taken. Bidding is a legacy
// synonym of pending.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusBidding
}

// Terminal reports whether the request has been decided.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ActiveStatuses lists the states a decision may start from.
func ActiveStatuses() []string {
	return []string{string(StatusPending), string(StatusBidding)}
}

// Action is a checker decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction validates a decision verb.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	default:
		return "", ErrInvalidAction
	}
}

// Status is the state the action moves a request to.
func (a Action) Status() Status {
	if a == ActionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// Permission is the action string required to take the decision.
func (a Action) Permission() string {
	if a == ActionApprove {
		return shared.PermRequestApprove
	}
	return shared.PermRequestReject
}

func (a Action) approval() shared.ApprovalAction {
	if a == ActionApprove {
		return shared.ApprovalApprove
	}
	return shared.ApprovalReject
}

// UserRef is the public projection of a user attached to a request.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Request is a unit of work submitted by a maker for a checker's decision.
// The checker is serialised under the historical "shacker" key.
type Request struct {
	ID        int64     `json:"id"`
	Field     string    `json:"field"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Maker     UserRef   `json:"maker"`
	Checker   *UserRef  `json:"shacker"`
	Version   int       `json:"-"`
}

// ListFilter narrows a listing. A nil MakerID lists every request.
type ListFilter struct {
	MakerID *int64
	Page    shared.PageRequest
}

// DecisionEvent describes a completed decision for notification fan-out.
type DecisionEvent struct {
	RequestID int64  `json:"request_id"`
	MakerID   int64  `json:"maker_id"`
	CheckerID int64  `json:"checker_id"`
	Checker   string `json:"checker"`
	Status    Status `json:"status"`
	Field     string `json:"field"`
}

// Client-facing failures.
var (
	ErrFieldRequired  = httpx.NewError(httpx.ErrValidation, "Field is required.")
	ErrFieldTooLong   = httpx.NewError(httpx.ErrValidation, "Field must be at most 4000 characters.")
	ErrInvalidAction  = httpx.NewError(httpx.ErrValidation, "Action must be approve or reject.")
	ErrInvalidID      = httpx.NewError(httpx.ErrValidation, "Invalid request id")
	ErrMakersOnly     = httpx.NewError(httpx.ErrForbidden, "Only makers can create requests.")
	ErrCheckersOnly   = httpx.NewError(httpx.ErrForbidden, "Only checkers can update requests.")
	ErrForbidden      = httpx.NewError(httpx.ErrForbidden, "Forbidden")
	ErrNotFound       = httpx.NewError(httpx.ErrNotFound, "Request not found")
	ErrAlreadyDecided = httpx.NewError(httpx.ErrConflict, "Request has already been decided.")
	ErrDecisionBusy   = httpx.NewError(httpx.ErrConflict, "Request is being decided by another checker.")
	ErrDuplicateKey   = httpx.NewError(httpx.ErrConflict, "Duplicate Idempotency-Key.")
)
