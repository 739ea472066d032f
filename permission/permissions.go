package permission

// Built-in permission names.
const (
	CreateRequest        = "admin:create_request"
	UpdateRequest        = "admin:update_request"
	BlockRequest         = "admin:block_request"
	RoleChangeRequest    = "admin:role_change_request"
	PasswordResetRequest = "admin:password_reset_request"
	ViewPending          = "admin:view_pending"
	ApproveReject        = "admin:approve_reject"
	ViewActivity         = "admin:activity_view"

	// Root grants every permission.
	Root = "admin:*"
)

// Built-in role names.
const (
	RoleSuperAdmin = "super_admin"
	RoleMaker      = "maker"
	RoleChecker    = "checker"
	RoleViewer     = "viewer"
)

// All lists the built-in permissions in registration order.
func All() []string {
	return []string{
		CreateRequest,
		UpdateRequest,
		BlockRequest,
		RoleChangeRequest,
		PasswordResetRequest,
		ViewPending,
		ApproveReject,
		ViewActivity,
	}
}

// DefaultRoles is the role table used when none is configured.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		RoleSuperAdmin: {Root},
		RoleMaker: {
			CreateRequest, UpdateRequest, BlockRequest,
			RoleChangeRequest, PasswordResetRequest, ViewPending,
		},
		RoleChecker: {ViewPending, ApproveReject, ViewActivity},
		RoleViewer:  {ViewPending},
	}
}
