package permission

import "testing"

func newSeededManager(t *testing.T) (*Registry, *RoleManager) {
	t.Helper()

	roles := map[string][]string{
		"guest": {"read:public"},
		"user":  {"read:public", "read:education", "write:profile"},
		"admin": {"*"},
	}

	reg := NewRegistry(true)
	lists := make([][]string, 0, len(roles))
	for _, perms := range roles {
		lists = append(lists, perms)
	}
	if err := reg.RegisterAll(lists...); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}
	reg.Freeze()

	rm := NewRoleManager(reg)
	for name, perms := range roles {
		if err := rm.RegisterRole(name, perms); err != nil {
			t.Fatalf("RegisterRole(%s) failed: %v", name, err)
		}
	}
	rm.Freeze()
	return reg, rm
}

func TestRegisterAllIsOrderIndependent(t *testing.T) {
	a := NewRegistry(true)
	b := NewRegistry(true)
	if err := a.RegisterAll([]string{"b", "a"}, []string{"c", "*"}); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}
	if err := b.RegisterAll([]string{"c"}, []string{"a", "b", "a"}); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	for _, name := range []string{"a", "b", "c"} {
		ba, _ := a.Bit(name)
		bb, _ := b.Bit(name)
		if ba != bb {
			t.Fatalf("bit for %s differs: %d vs %d", name, ba, bb)
		}
	}
	if a.Count() != 3 {
		t.Fatalf("expected 3 permissions, got %d", a.Count())
	}
	if _, ok := a.Bit("*"); ok {
		t.Fatal("wildcard must not be registered as a permission")
	}
}

func TestRoleMasks(t *testing.T) {
	reg, rm := newSeededManager(t)

	guest, ok := rm.GetMask("guest")
	if !ok {
		t.Fatal("guest role missing")
	}
	if !reg.Has(guest, "read:public") {
		t.Fatal("guest should read public content")
	}
	if reg.Has(guest, "write:profile") {
		t.Fatal("guest must not write profiles")
	}

	admin, _ := rm.GetMask("admin")
	for _, perm := range []string{"read:public", "read:education", "write:profile", "delete:everything"} {
		if !reg.Has(admin, perm) {
			t.Fatalf("admin should have %s", perm)
		}
	}
	if got := len(reg.Names(admin)); got != reg.Count() {
		t.Fatalf("admin names = %d, want %d", got, reg.Count())
	}
}

func TestWildcardSetsConcreteBits(t *testing.T) {
	reg, rm := newSeededManager(t)
	admin, _ := rm.GetMask("admin")

	bit, _ := reg.Bit("write:profile")
	if !admin.Has(bit, false) {
		t.Fatal("wildcard mask should hold concrete bits even without root semantics")
	}
}

func TestRegisterRoleRejectsUnknownPermission(t *testing.T) {
	reg := NewRegistry(true)
	rm := NewRoleManager(reg)
	if err := rm.RegisterRole("x", []string{"missing"}); err == nil {
		t.Fatal("expected unknown permission error")
	}
	if err := rm.RegisterRole("", nil); err == nil {
		t.Fatal("expected empty role name error")
	}
}

func TestMaskForFallsBackToResolve(t *testing.T) {
	reg, rm := newSeededManager(t)

	m := rm.MaskFor("editor", []string{"read:education", "unknown"})
	if !reg.Has(m, "read:education") {
		t.Fatal("resolved mask should include known permission")
	}
	if reg.Has(m, "read:public") {
		t.Fatal("resolved mask should not include unlisted permission")
	}
}

func TestRegistryFrozenAndLimit(t *testing.T) {
	reg := NewRegistry(true)
	for i := 0; i < 63; i++ {
		if _, err := reg.Register(string(rune('A'+i%26)) + string(rune('0'+i/26))); err != nil {
			t.Fatalf("Register %d failed: %v", i, err)
		}
	}
	if _, err := reg.Register("overflow"); err == nil {
		t.Fatal("expected limit error once the root bit is reached")
	}

	reg2 := NewRegistry(false)
	reg2.Freeze()
	if _, err := reg2.Register("late"); err == nil {
		t.Fatal("expected frozen registry error")
	}
}
