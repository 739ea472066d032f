package adminauth

import "context"

// SubmitCredentials runs the first login stage. An unknown email, a wrong
// password and a disabled account all fail with ErrInvalidCredentials.
//
// On success no token is issued. If the user had no second-factor secret, one
// is created and returned in Enrollment; otherwise only SecondFactorRequired
// is set and the caller must follow up with SubmitSecondFactor.
func (e *Engine) SubmitCredentials(ctx context.Context, email, password string) (*CredentialsResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.SubmitCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return &CredentialsResult{
		UserID:               res.UserID,
		SecondFactorRequired: true,
		Enrollment:           toEnrollment(res.Enrollment),
	}, nil
}

// SubmitSecondFactor completes a login opened by SubmitCredentials. The code
// is checked against the current step with the configured skew. A code can
// be redeemed once. Success creates the session row and returns its token.
func (e *Engine) SubmitSecondFactor(ctx context.Context, userID int64, code string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.SubmitSecondFactor(ctx, userID, code)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:      res.Token,
		SessionID:  res.SessionID,
		ExpiresAt:  res.ExpiresAt,
		User:       res.User,
		FirstLogin: res.User.FirstLogin,
	}, nil
}
