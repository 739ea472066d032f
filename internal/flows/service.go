package flows

import (
	"context"

	"github.com/MrEthical07/adminauth/admin"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each operation to the matching flow.
type Deps struct {
	Runtime  Runtime
	Login    LoginDeps
	Session  SessionDeps
	Password PasswordDeps
	Approval ApprovalDeps
}

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Runtime.Ready()
}

func (s Service) SubmitCredentials(ctx context.Context, email, password string) (CredentialsResult, error) {
	return RunSubmitCredentials(ctx, email, password, s.deps.Login)
}

func (s Service) SubmitSecondFactor(ctx context.Context, userID int64, code string) (LoginResult, error) {
	return RunSubmitSecondFactor(ctx, userID, code, s.deps.Login)
}

func (s Service) Validate(ctx context.Context, token string) ValidateResult {
	return RunValidate(ctx, token, s.deps.Session)
}

func (s Service) Logout(ctx context.Context, token string) error {
	return RunLogout(ctx, token, s.deps.Session)
}

func (s Service) LogoutAll(ctx context.Context, userID int64, keepTokenHash string) (int64, error) {
	return RunLogoutAll(ctx, userID, keepTokenHash, s.deps.Session)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) (ResetRequestResult, error) {
	return RunRequestPasswordReset(ctx, email, s.deps.Password)
}

func (s Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return RunResetPassword(ctx, token, newPassword, s.deps.Password)
}

func (s Service) ChangePassword(ctx context.Context, userID int64, current, next, keepTokenHash string) error {
	return RunChangePassword(ctx, userID, current, next, keepTokenHash, s.deps.Password)
}

func (s Service) SubmitRequest(ctx context.Context, requesterID int64, action admin.Action) (admin.PendingRequest, error) {
	return RunSubmitRequest(ctx, requesterID, action, s.deps.Approval)
}

func (s Service) ResolveRequest(ctx context.Context, requestID int64, decision admin.Decision, reviewerID int64) (ResolveResult, error) {
	return RunResolveRequest(ctx, requestID, decision, reviewerID, s.deps.Approval)
}

func (s Service) ListRequests(ctx context.Context, viewerID int64, status admin.Status) ([]admin.PendingRequest, error) {
	return RunListRequests(ctx, viewerID, status, s.deps.Approval)
}

func (s Service) GetRequest(ctx context.Context, viewerID, requestID int64) (admin.PendingRequest, error) {
	return RunGetRequest(ctx, viewerID, requestID, s.deps.Approval)
}

func (s Service) Profile(ctx context.Context, userID int64) (admin.Summary, error) {
	return RunProfile(ctx, userID, s.deps.Runtime)
}

func (s Service) UpdateProfile(ctx context.Context, userID int64, name, phone string) (admin.Summary, error) {
	return RunUpdateProfile(ctx, userID, name, phone, s.deps.Runtime)
}

func (s Service) ListActivity(ctx context.Context, viewerID int64, f admin.ActivityFilter) ([]admin.ActivityEntry, error) {
	return RunListActivity(ctx, viewerID, f, s.deps.Approval)
}

func (s Service) State(ctx context.Context) (StateResult, error) {
	return RunState(ctx, s.deps.Runtime)
}
