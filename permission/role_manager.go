package permission

import (
	"errors"
	"sync"
)

// RoleManager holds the resolved mask of every known role. It is filled
// during initialization and read concurrently afterwards.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask64
	frozen bool
}

// NewRoleManager creates a [RoleManager] resolving names through registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Mask64),
	}
}

// RegisterRole resolves permissionNames into a mask and stores it under
// roleName. Every name must already be registered, except the wildcard.
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

	mask, err := rm.resolve(permissionNames, true)
	if err != nil {
		return err
	}

	rm.roles[roleName] = mask
	return nil
}

// Resolve builds a mask from permissionNames without storing it. Unknown
// names are ignored.
func (rm *RoleManager) Resolve(permissionNames []string) Mask64 {
	mask, _ := rm.resolve(permissionNames, false)
	return mask
}

func (rm *RoleManager) resolve(permissionNames []string, strict bool) (Mask64, error) {
	var mask Mask64
	for _, perm := range permissionNames {
		if perm == Wildcard {
			mask |= rm.wildcard()
			continue
		}

		bit, ok := rm.registry.Bit(perm)
		if !ok {
			if strict {
				return 0, errors.New("permission not registered: " + perm)
			}
			continue
		}
		mask.Set(bit)
	}
	return mask, nil
}

// wildcard sets every registered bit, plus the root bit when reserved, so
// the mask also satisfies checks that ignore the root bit.
func (rm *RoleManager) wildcard() Mask64 {
	var mask Mask64
	for bit := 0; bit < rm.registry.Count(); bit++ {
		mask.Set(bit)
	}
	if root, ok := rm.registry.RootBit(); ok {
		mask.Set(root)
	}
	return mask
}

// GetMask returns the mask of a registered role.
func (rm *RoleManager) GetMask(roleName string) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	mask, ok := rm.roles[roleName]
	return mask, ok
}

// MaskFor returns the registered mask for roleName, falling back to
// resolving permissionNames for roles created after load.
func (rm *RoleManager) MaskFor(roleName string, permissionNames []string) Mask64 {
	if mask, ok := rm.GetMask(roleName); ok {
		return mask
	}
	return rm.Resolve(permissionNames)
}

// Freeze prevents further role registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
