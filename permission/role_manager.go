package permission

import (
	"errors"
	"sort"
	"sync"
)

// RoleManager resolves role names to permission masks.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask64
	frozen bool
}

func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Mask64),
	}
}

// NewRoleManagerFrom registers every role in roles and freezes both the
// manager and its registry.
func NewRoleManagerFrom(registry *Registry, roles map[string][]string) (*RoleManager, error) {
	rm := NewRoleManager(registry)
	names := make([]string, 0, len(roles))
	for name := range roles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := rm.RegisterRole(name, roles[name]); err != nil {
			return nil, err
		}
	}
	registry.Freeze()
	rm.Freeze()
	return rm, nil
}

// RegisterRole builds the mask for roleName. Every permission must already
// be registered.
func (rm *RoleManager) RegisterRole(roleName string, permissionNames []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if roleName == "" {
		return errors.New("role name empty")
	}
	if _, exists := rm.roles[roleName]; exists {
		return errors.New("role already registered")
	}

	var mask Mask64
	for _, perm := range permissionNames {
		bit, ok := rm.registry.Bit(perm)
		if !ok {
			return errors.New("permission not registered: " + perm)
		}
		mask.Set(bit)
	}

	rm.roles[roleName] = mask
	return nil
}

// GetMask returns the mask of roleName.
func (rm *RoleManager) GetMask(roleName string) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	mask, ok := rm.roles[roleName]
	return mask, ok
}

// Exists reports whether roleName is registered.
func (rm *RoleManager) Exists(roleName string) bool {
	_, ok := rm.GetMask(roleName)
	return ok
}

// Has reports whether roleName grants perm. Unknown roles and unknown
// permissions are denied.
func (rm *RoleManager) Has(roleName, perm string) bool {
	mask, ok := rm.GetMask(roleName)
	if !ok {
		return false
	}
	bit, ok := rm.registry.Bit(perm)
	if !ok {
		return false
	}
	_, rootReserved := rm.registry.RootBit()
	return mask.Has(bit, rootReserved)
}

// Permissions lists the named permissions granted to roleName, sorted.
func (rm *RoleManager) Permissions(roleName string) []string {
	mask, ok := rm.GetMask(roleName)
	if !ok {
		return nil
	}
	var out []string
	for bit := 0; bit < maxBits; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		if name, ok := rm.registry.Name(bit); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
