package permission

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func defaultManager(t *testing.T) *RoleManager {
	t.Helper()
	reg, err := NewDefaultRegistry()
	require.NoError(t, err)
	rm, err := NewRoleManagerFrom(reg, DefaultRoles())
	require.NoError(t, err)
	return rm
}

func TestDefaultRoles(t *testing.T) {
	rm := defaultManager(t)

	require.True(t, rm.Has(RoleMaker, CreateRequest))
	require.False(t, rm.Has(RoleMaker, ApproveReject))
	require.True(t, rm.Has(RoleChecker, ApproveReject))
	require.False(t, rm.Has(RoleChecker, BlockRequest))
	require.True(t, rm.Has(RoleViewer, ViewPending))
	require.False(t, rm.Has(RoleViewer, CreateRequest))

	for _, perm := range All() {
		require.True(t, rm.Has(RoleSuperAdmin, perm), perm)
	}

	require.False(t, rm.Has("ghost", ViewPending))
	require.False(t, rm.Has(RoleMaker, "admin:unknown"))
	require.Equal(t, 4, rm.Count())
}

func TestRegistryFrozen(t *testing.T) {
	reg := NewRegistry(true)
	_, err := reg.Register(ViewPending)
	require.NoError(t, err)
	_, err = reg.Register(ViewPending)
	require.Error(t, err)
	_, err = reg.Register(Root)
	require.Error(t, err)

	reg.Freeze()
	_, err = reg.Register("admin:late")
	require.Error(t, err)
}

func TestRegistryLimit(t *testing.T) {
	reg := NewRegistry(true)
	for i := 0; i < 63; i++ {
		_, err := reg.Register(string(rune('A'+i%26)) + string(rune('a'+i/26)))
		require.NoError(t, err)
	}
	_, err := reg.Register("overflow")
	require.Error(t, err)
}

func TestRoleWithUnknownPermissionFails(t *testing.T) {
	reg, err := NewDefaultRegistry()
	require.NoError(t, err)
	_, err = NewRoleManagerFrom(reg, map[string][]string{"odd": {"admin:nope"}})
	require.Error(t, err)
}

func TestPermissionsListing(t *testing.T) {
	rm := defaultManager(t)
	require.Equal(t, []string{ViewActivity, ApproveReject, ViewPending}, rm.Permissions(RoleChecker))
	require.Equal(t, []string{Root}, rm.Permissions(RoleSuperAdmin))
}
