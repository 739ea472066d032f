package flows

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/notify"
	"github.com/MrEthical07/adminauth/permission"
)

// ApprovalDeps captures the maker-checker pipeline.
type ApprovalDeps struct {
	Runtime

	RequireDistinctReviewer bool
	ListLimit               int

	HasPermission    func(role, perm string) bool
	RoleExists       func(role string) bool
	GeneratePassword func() (string, error)
	HashPassword     func(password string) (string, error)
}

// ResolveResult is the resolved request plus the delivery outcome of any
// generated credential. Delivered is true when nothing needed delivery.
type ResolveResult struct {
	Request   admin.PendingRequest
	Delivered bool
}

func (d ApprovalDeps) ready() bool {
	return d.Runtime.Ready() &&
		d.HasPermission != nil &&
		d.RoleExists != nil &&
		d.GeneratePassword != nil &&
		d.HashPassword != nil
}

// SubmitPermission returns the permission a requester needs to record a.
func SubmitPermission(a admin.Action) (string, bool) {
	switch a.(type) {
	case admin.CreateUser:
		return permission.CreateRequest, true
	case admin.UpdateUser:
		return permission.UpdateRequest, true
	case admin.BlockUser, admin.UnblockUser:
		return permission.BlockRequest, true
	case admin.ChangeRole:
		return permission.RoleChangeRequest, true
	case admin.ResetPassword:
		return permission.PasswordResetRequest, true
	default:
		return "", false
	}
}

// RunSubmitRequest validates action and records it as pending. Nothing is
// applied until a reviewer approves it.
func RunSubmitRequest(ctx context.Context, requesterID int64, action admin.Action, deps ApprovalDeps) (admin.PendingRequest, error) {
	deps.Runtime.normalize()
	if !deps.ready() {
		return admin.PendingRequest{}, deps.Errors.EngineNotReady
	}

	uid := formatID(requesterID)
	perm, ok := SubmitPermission(action)
	if !ok {
		err := fmt.Errorf("%w: unsupported action %T", deps.Errors.InvalidRequest, action)
		deps.EmitAudit(ctx, deps.Events.RequestSubmit, false, uid, "", err, nil)
		return admin.PendingRequest{}, err
	}

	requester, err := deps.actor(ctx, requesterID)
	if err != nil {
		return admin.PendingRequest{}, err
	}
	if !deps.HasPermission(requester.Role, perm) {
		deps.EmitAudit(ctx, deps.Events.RequestSubmit, false, uid, "", deps.Errors.PermissionDenied, func() map[string]string {
			return map[string]string{"action": string(action.Kind()), "permission": perm}
		})
		return admin.PendingRequest{}, deps.Errors.PermissionDenied
	}

	action, err = deps.validate(ctx, action)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.RequestSubmit, false, uid, "", err, func() map[string]string {
			return map[string]string{"action": string(action.Kind())}
		})
		return admin.PendingRequest{}, err
	}

	created, err := deps.Store.Requests().Create(ctx, admin.PendingRequest{
		Action:      action,
		RequestedBy: requesterID,
		Status:      admin.StatusPending,
		CreatedAt:   deps.Now(),
	})
	if err != nil {
		return admin.PendingRequest{}, deps.storeError(err)
	}

	deps.MetricInc(deps.Metrics.RequestSubmitted)
	deps.EmitAudit(ctx, deps.Events.RequestSubmit, true, uid, "", nil, requestMeta(created))
	return created, nil
}

// actor loads the user acting on the pipeline. Unknown and disabled accounts
// hold no permissions.
func (d ApprovalDeps) actor(ctx context.Context, id int64) (admin.User, error) {
	if id <= 0 {
		return admin.User{}, d.Errors.PermissionDenied
	}
	u, err := d.Store.Users().Get(ctx, id)
	if err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return admin.User{}, d.Errors.PermissionDenied
		}
		return admin.User{}, d.storeError(err)
	}
	if !u.CanLogin() {
		return admin.User{}, d.Errors.PermissionDenied
	}
	return u, nil
}

// validate normalizes the payload and checks it against current state.
func (d ApprovalDeps) validate(ctx context.Context, action admin.Action) (admin.Action, error) {
	switch a := action.(type) {
	case admin.CreateUser:
		a.Email = admin.NormalizeEmail(a.Email)
		a.Name = strings.TrimSpace(a.Name)
		a.Phone = strings.TrimSpace(a.Phone)
		if a.Name == "" {
			return a, d.invalid("name is required")
		}
		if addr, err := mail.ParseAddress(a.Email); err != nil || addr.Address != a.Email {
			return a, d.invalid("email is malformed")
		}
		if !d.RoleExists(a.Role) {
			return a, d.invalid("unknown role " + a.Role)
		}
		exists, err := d.Store.Users().EmailExists(ctx, a.Email)
		if err != nil {
			return a, d.storeError(err)
		}
		if exists {
			return a, d.Errors.DuplicateEmail
		}
		return a, nil
	case admin.UpdateUser:
		a.Name = strings.TrimSpace(a.Name)
		a.Phone = strings.TrimSpace(a.Phone)
		if a.Name == "" {
			return a, d.invalid("name is required")
		}
		return a, d.targetExists(ctx, a.TargetID)
	case admin.BlockUser:
		return a, d.targetExists(ctx, a.TargetID)
	case admin.UnblockUser:
		return a, d.targetExists(ctx, a.TargetID)
	case admin.ChangeRole:
		if !d.RoleExists(a.Role) {
			return a, d.invalid("unknown role " + a.Role)
		}
		return a, d.targetExists(ctx, a.TargetID)
	case admin.ResetPassword:
		return a, d.targetExists(ctx, a.TargetID)
	default:
		return action, d.invalid(fmt.Sprintf("unsupported action %T", action))
	}
}

func (d ApprovalDeps) invalid(detail string) error {
	return fmt.Errorf("%w: %s", d.Errors.InvalidRequest, detail)
}

func (d ApprovalDeps) targetExists(ctx context.Context, id int64) error {
	if id <= 0 {
		return d.invalid("target user is required")
	}
	if _, err := d.Store.Users().Get(ctx, id); err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return fmt.Errorf("%w: %w", d.Errors.InvalidRequest, d.Errors.UserNotFound)
		}
		return d.storeError(err)
	}
	return nil
}

// RunResolveRequest approves or rejects a pending request. The status
// transition and the applied mutation commit together or not at all.
func RunResolveRequest(ctx context.Context, requestID int64, decision admin.Decision, reviewerID int64, deps ApprovalDeps) (ResolveResult, error) {
	deps.Runtime.normalize()
	if !deps.ready() {
		return ResolveResult{}, deps.Errors.EngineNotReady
	}

	uid := formatID(reviewerID)
	status, ok := decision.Status()
	if !ok {
		return ResolveResult{}, deps.invalid(fmt.Sprintf("unknown decision %q", decision))
	}

	reviewer, err := deps.actor(ctx, reviewerID)
	if err != nil {
		return ResolveResult{}, err
	}
	if !deps.HasPermission(reviewer.Role, permission.ApproveReject) {
		deps.EmitAudit(ctx, deps.Events.RequestResolve, false, uid, "", deps.Errors.PermissionDenied, nil)
		return ResolveResult{}, deps.Errors.PermissionDenied
	}

	req, err := deps.Store.Requests().Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return ResolveResult{}, deps.Errors.RequestNotFound
		}
		return ResolveResult{}, deps.storeError(err)
	}
	if req.Status != admin.StatusPending {
		deps.MetricInc(deps.Metrics.RequestConflict)
		return ResolveResult{}, deps.Errors.RequestAlreadyResolved
	}
	if deps.RequireDistinctReviewer && req.RequestedBy == reviewerID {
		deps.EmitAudit(ctx, deps.Events.RequestResolve, false, uid, "", deps.Errors.SelfApproval, requestMeta(req))
		return ResolveResult{}, deps.Errors.SelfApproval
	}

	var secret, secretHash string
	if status == admin.StatusApproved && generatesPassword(req.Action) {
		if secret, err = deps.GeneratePassword(); err != nil {
			return ResolveResult{}, fmt.Errorf("generate password: %w", err)
		}
		if secretHash, err = deps.HashPassword(secret); err != nil {
			return ResolveResult{}, fmt.Errorf("hash password: %w", err)
		}
	}

	now := deps.Now()
	var subject admin.User
	err = deps.Store.WithinTx(ctx, func(tx admin.Store) error {
		if err := tx.Requests().MarkResolved(ctx, requestID, status, reviewerID, now); err != nil {
			return err
		}
		if status != admin.StatusApproved {
			return nil
		}
		var err error
		subject, err = deps.apply(ctx, tx, req.Action, secretHash, now)
		return err
	})
	if err != nil {
		mapped := deps.resolveError(err)
		deps.EmitAudit(ctx, deps.Events.RequestResolve, false, uid, "", mapped, requestMeta(req))
		return ResolveResult{}, mapped
	}

	req.Status = status
	req.ReviewedBy = &reviewerID
	req.ReviewedAt = &now
	if status == admin.StatusApproved {
		deps.MetricInc(deps.Metrics.RequestApproved)
	} else {
		deps.MetricInc(deps.Metrics.RequestRejected)
	}

	delivered := true
	if secret != "" {
		delivered = deps.deliverPassword(ctx, req.Action, subject, secret)
	}
	deps.EmitAudit(ctx, deps.Events.RequestResolve, true, uid, "", nil, func() map[string]string {
		meta := requestMeta(req)()
		meta["status"] = string(status)
		if !delivered {
			meta["reason"] = "notification_failed"
		}
		return meta
	})
	return ResolveResult{Request: req, Delivered: delivered}, nil
}

func (d ApprovalDeps) resolveError(err error) error {
	switch {
	case errors.Is(err, admin.ErrAlreadyResolved):
		d.MetricInc(d.Metrics.RequestConflict)
		return d.Errors.RequestAlreadyResolved
	case errors.Is(err, d.Errors.UserNotFound), errors.Is(err, d.Errors.InvalidRequest):
		return err
	case errors.Is(err, admin.ErrNotFound):
		return d.Errors.RequestNotFound
	case errors.Is(err, admin.ErrDuplicateEmail):
		return d.Errors.DuplicateEmail
	default:
		return d.storeError(err)
	}
}

func generatesPassword(a admin.Action) bool {
	switch a.(type) {
	case admin.CreateUser, admin.ResetPassword:
		return true
	}
	return false
}

// apply performs the approved mutation through the transaction-bound store
// and returns the affected user.
func (d ApprovalDeps) apply(ctx context.Context, tx admin.Store, action admin.Action, passwordHash string, now time.Time) (admin.User, error) {
	users := tx.Users()
	switch a := action.(type) {
	case admin.CreateUser:
		u, err := users.Create(ctx, admin.NewUser{
			Email:        a.Email,
			Name:         a.Name,
			Phone:        a.Phone,
			PasswordHash: passwordHash,
			Role:         a.Role,
			FirstLogin:   true,
			CreatedAt:    now,
		})
		if err != nil {
			return admin.User{}, err
		}
		return u, users.AppendPasswordHistory(ctx, u.ID, passwordHash, now)
	case admin.UpdateUser:
		return d.applyTargeted(ctx, tx, a.TargetID, false, func() error {
			return users.UpdateProfile(ctx, a.TargetID, a.Name, a.Phone, now)
		})
	case admin.BlockUser:
		return d.applyTargeted(ctx, tx, a.TargetID, true, func() error {
			return users.SetBlocked(ctx, a.TargetID, true, now)
		})
	case admin.UnblockUser:
		return d.applyTargeted(ctx, tx, a.TargetID, false, func() error {
			return users.SetBlocked(ctx, a.TargetID, false, now)
		})
	case admin.ChangeRole:
		if !d.RoleExists(a.Role) {
			return admin.User{}, d.invalid("unknown role " + a.Role)
		}
		return d.applyTargeted(ctx, tx, a.TargetID, true, func() error {
			return users.SetRole(ctx, a.TargetID, a.Role, now)
		})
	case admin.ResetPassword:
		return d.applyTargeted(ctx, tx, a.TargetID, true, func() error {
			if err := users.SetPassword(ctx, a.TargetID, passwordHash, true, now); err != nil {
				return err
			}
			return users.AppendPasswordHistory(ctx, a.TargetID, passwordHash, now)
		})
	default:
		return admin.User{}, d.invalid(fmt.Sprintf("unsupported action %T", action))
	}
}

// applyTargeted runs mutate against an existing user and, when revoke is set,
// deactivates every session of that user in the same transaction.
func (d ApprovalDeps) applyTargeted(ctx context.Context, tx admin.Store, targetID int64, revoke bool, mutate func() error) (admin.User, error) {
	if err := mutate(); err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return admin.User{}, d.Errors.UserNotFound
		}
		return admin.User{}, err
	}
	if revoke {
		if _, err := tx.Sessions().DeactivateUser(ctx, targetID, "", d.Now()); err != nil {
			return admin.User{}, err
		}
	}
	u, err := tx.Users().Get(ctx, targetID)
	if errors.Is(err, admin.ErrNotFound) {
		return admin.User{}, d.Errors.UserNotFound
	}
	return u, err
}

func (d ApprovalDeps) deliverPassword(ctx context.Context, action admin.Action, user admin.User, secret string) bool {
	kind := notify.KindPasswordReset
	if _, ok := action.(admin.CreateUser); ok {
		kind = notify.KindInitialPassword
	}
	return d.send(ctx, notify.Message{
		Recipient: user.Email,
		Kind:      kind,
		Data: map[string]string{
			notify.DataName:     user.Name,
			notify.DataPassword: secret,
		},
	})
}

// RunListRequests returns requests in status, pending when status is empty.
func RunListRequests(ctx context.Context, viewerID int64, status admin.Status, deps ApprovalDeps) ([]admin.PendingRequest, error) {
	deps.Runtime.normalize()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	if status == "" {
		status = admin.StatusPending
	}
	if !status.Valid() {
		return nil, deps.invalid(fmt.Sprintf("unknown status %q", status))
	}
	if err := deps.requireViewer(ctx, viewerID); err != nil {
		return nil, err
	}
	out, err := deps.Store.Requests().List(ctx, status, deps.ListLimit)
	if err != nil {
		return nil, deps.storeError(err)
	}
	return out, nil
}

// RunGetRequest returns one request to a viewer.
func RunGetRequest(ctx context.Context, viewerID, requestID int64, deps ApprovalDeps) (admin.PendingRequest, error) {
	deps.Runtime.normalize()
	if !deps.ready() {
		return admin.PendingRequest{}, deps.Errors.EngineNotReady
	}
	if err := deps.requireViewer(ctx, viewerID); err != nil {
		return admin.PendingRequest{}, err
	}
	req, err := deps.Store.Requests().Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return admin.PendingRequest{}, deps.Errors.RequestNotFound
		}
		return admin.PendingRequest{}, deps.storeError(err)
	}
	return req, nil
}

func (d ApprovalDeps) requireViewer(ctx context.Context, viewerID int64) error {
	viewer, err := d.actor(ctx, viewerID)
	if err != nil {
		return err
	}
	if !d.HasPermission(viewer.Role, permission.ViewPending) {
		return d.Errors.PermissionDenied
	}
	return nil
}

func requestMeta(req admin.PendingRequest) func() map[string]string {
	return func() map[string]string {
		meta := map[string]string{
			"request_id":   formatID(req.ID),
			"requested_by": formatID(req.RequestedBy),
		}
		if req.Action != nil {
			meta["action"] = string(req.Action.Kind())
			if target, ok := admin.TargetOf(req.Action); ok {
				meta["target_user_id"] = formatID(target)
			}
		}
		return meta
	}
}
