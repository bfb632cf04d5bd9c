package permission

import (
	"errors"
	"sort"
	"sync"
)

// Wildcard grants every permission when it appears in a role's list.
const Wildcard = "*"

// Registry maps permission names to bit positions within a [Mask64].
type Registry struct {
	rootReserved bool
	rootBit      int

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates an empty [Registry]. With rootReserved, bit 63 is
// kept for the wildcard and 63 bits remain for named permissions.
func NewRegistry(rootReserved bool) *Registry {
	r := &Registry{
		rootReserved: rootReserved,
		rootBit:      -1,
		nameToBit:    make(map[string]int),
		bitToName:    make(map[int]string),
	}
	if rootReserved {
		r.rootBit = 63
	}
	return r
}

// Register assigns the next available bit to the named permission.
// Returns the assigned bit index. Must be called before [Registry.Freeze].
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}

	if name == "" || name == Wildcard {
		return -1, errors.New("invalid permission name")
	}

	if _, exists := r.nameToBit[name]; exists {
		return -1, errors.New("permission already registered")
	}

	nextBit := len(r.nameToBit)

	if r.rootReserved && nextBit >= r.rootBit {
		return -1, errors.New("permission limit exceeded (root bit reserved)")
	}

	if nextBit >= 64 {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name

	return nextBit, nil
}

// RegisterAll registers every distinct name in lists that is not known yet,
// in sorted order so bit assignment does not depend on input order.
// The wildcard is skipped.
func (r *Registry) RegisterAll(lists ...[]string) error {
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, name := range list {
			if name == Wildcard {
				continue
			}
			if _, ok := r.Bit(name); ok {
				continue
			}
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := r.Register(name); err != nil {
			return err
		}
	}
	return nil
}

// Bit returns the bit index for the named permission, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission name for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Names returns the permission names set in m, in bit order. A mask with
// the root bit yields every registered name.
func (r *Registry) Names(m Mask64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.bitToName))
	for bit := 0; bit < 64; bit++ {
		name, ok := r.bitToName[bit]
		if ok && m.Has(bit, r.rootReserved) {
			out = append(out, name)
		}
	}
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// RootBit returns the reserved root permission bit, or false if root-bit
// reservation is disabled.
func (r *Registry) RootBit() (int, bool) {
	if !r.rootReserved {
		return -1, false
	}
	return r.rootBit, true
}

// RootReserved reports whether bit 63 stands for the wildcard.
func (r *Registry) RootReserved() bool {
	return r.rootReserved
}

// Has reports whether m grants the named permission. Unknown names are
// only granted to root masks.
func (r *Registry) Has(m Mask64, name string) bool {
	if bit, ok := r.Bit(name); ok {
		return m.Has(bit, r.rootReserved)
	}
	if r.rootReserved {
		return m.Has(r.rootBit, false)
	}
	return false
}
