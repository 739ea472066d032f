package permission

import (
	"errors"
	"sync"
)

const maxBits = 64

// Registry maps permission names to bit positions within a Mask64.
type Registry struct {
	rootReserved bool
	rootBit      int

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates an empty registry. With rootReserved the top bit is
// kept for the root permission and 63 bits remain for named permissions.
func NewRegistry(rootReserved bool) *Registry {
	r := &Registry{
		rootReserved: rootReserved,
		nameToBit:    make(map[string]int),
		bitToName:    make(map[int]string),
	}
	if rootReserved {
		r.rootBit = maxBits - 1
	}
	return r
}

// NewDefaultRegistry registers the built-in admin permissions in order.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry(true)
	for _, name := range All() {
		if _, err := r.Register(name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register assigns the next available bit to the named permission.
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}
	if name == Root {
		return -1, errors.New("root permission is implicit")
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, errors.New("permission already registered")
	}

	nextBit := len(r.nameToBit)
	if r.rootReserved && nextBit >= r.rootBit {
		return -1, errors.New("permission limit exceeded (root bit reserved)")
	}
	if nextBit >= maxBits {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name
	return nextBit, nil
}

// Bit returns the bit index for the named permission. Root resolves to the
// reserved bit when reservation is on.
func (r *Registry) Bit(name string) (int, bool) {
	if name == Root {
		return r.RootBit()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission name for the given bit index.
func (r *Registry) Name(bit int) (string, bool) {
	if r.rootReserved && bit == r.rootBit {
		return Root, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// RootBit returns the reserved root bit, or false if reservation is disabled.
func (r *Registry) RootBit() (int, bool) {
	if !r.rootReserved {
		return -1, false
	}
	return r.rootBit, true
}
