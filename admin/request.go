package admin

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a pending request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Decision is the reviewer's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Status maps a decision to the terminal status it produces.
func (d Decision) Status() (Status, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionReject:
		return StatusRejected, true
	}
	return "", false
}

// ActionKind is the stored tag of an Action variant.
type ActionKind string

const (
	ActionCreate        ActionKind = "create"
	ActionUpdate        ActionKind = "update"
	ActionBlock         ActionKind = "block"
	ActionUnblock       ActionKind = "unblock"
	ActionChangeRole    ActionKind = "change_role"
	ActionResetPassword ActionKind = "reset_password"
)

// Action is a privileged mutation awaiting review. The set of variants is
// closed: only the types in this file implement it.
type Action interface {
	Kind() ActionKind
	isAction()
}

// CreateUser proposes a new administrative account. The initial password is
// generated at approval time and never stored in the request.
type CreateUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

// UpdateUser proposes new name and phone values for an existing account.
type UpdateUser struct {
	TargetID int64  `json:"target_user_id"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
}

// BlockUser proposes blocking an account.
type BlockUser struct {
	TargetID int64 `json:"target_user_id"`
}

// UnblockUser proposes lifting a block.
type UnblockUser struct {
	TargetID int64 `json:"target_user_id"`
}

// ChangeRole proposes assigning a different role.
type ChangeRole struct {
	TargetID int64  `json:"target_user_id"`
	Role     string `json:"role"`
}

// ResetPassword proposes replacing an account's password with a generated one.
type ResetPassword struct {
	TargetID int64 `json:"target_user_id"`
}

func (CreateUser) Kind() ActionKind    { return ActionCreate }
func (UpdateUser) Kind() ActionKind    { return ActionUpdate }
func (BlockUser) Kind() ActionKind     { return ActionBlock }
func (UnblockUser) Kind() ActionKind   { return ActionUnblock }
func (ChangeRole) Kind() ActionKind    { return ActionChangeRole }
func (ResetPassword) Kind() ActionKind { return ActionResetPassword }

func (CreateUser) isAction()    {}
func (UpdateUser) isAction()    {}
func (BlockUser) isAction()     {}
func (UnblockUser) isAction()   {}
func (ChangeRole) isAction()    {}
func (ResetPassword) isAction() {}

// TargetOf returns the existing user an action mutates. CreateUser has no target.
func TargetOf(a Action) (int64, bool) {
	switch v := a.(type) {
	case UpdateUser:
		return v.TargetID, true
	case BlockUser:
		return v.TargetID, true
	case UnblockUser:
		return v.TargetID, true
	case ChangeRole:
		return v.TargetID, true
	case ResetPassword:
		return v.TargetID, true
	}
	return 0, false
}

// EncodeAction serializes an action into its tag and JSON payload.
func EncodeAction(a Action) (ActionKind, []byte, error) {
	if a == nil {
		return "", nil, fmt.Errorf("%w: nil action", ErrUnknownAction)
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s payload: %w", a.Kind(), err)
	}
	return a.Kind(), payload, nil
}

// DecodeAction rebuilds an action from its stored tag and payload.
func DecodeAction(kind ActionKind, payload []byte) (Action, error) {
	var (
		action Action
		err    error
	)
	switch kind {
	case ActionCreate:
		var v CreateUser
		err = json.Unmarshal(payload, &v)
		action = v
	case ActionUpdate:
		var v UpdateUser
		err = json.Unmarshal(payload, &v)
		action = v
	case ActionBlock:
		var v BlockUser
		err = json.Unmarshal(payload, &v)
		action = v
	case ActionUnblock:
		var v UnblockUser
		err = json.Unmarshal(payload, &v)
		action = v
	case ActionChangeRole:
		var v ChangeRole
		err = json.Unmarshal(payload, &v)
		action = v
	case ActionResetPassword:
		var v ResetPassword
		err = json.Unmarshal(payload, &v)
		action = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return action, nil
}

// PendingRequest is a recorded privileged mutation and its review state.
type PendingRequest struct {
	ID          int64
	Action      Action
	RequestedBy int64
	Status      Status
	ReviewedBy  *int64
	ReviewedAt  *time.Time
	CreatedAt   time.Time
}
