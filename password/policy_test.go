package password

import (
	"reflect"
	"strings"
	"testing"
)

func containsFold(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(strings.ToLower(s), sub) {
			return true
		}
	}
	return false
}

func TestPolicyAcceptsStrongPassword(t *testing.T) {
	p := NewPolicy(DefaultPolicyConfig())

	res := p.Validate("Tr0ub4dor&3!", "alice", "a@x.com")
	if !res.Valid {
		t.Fatalf("expected valid, got errors %v", res.Errors)
	}
	if res.Score != 4 {
		t.Fatalf("expected score 4, got %v", res.Score)
	}
	if res.Strength != StrengthVeryStrong {
		t.Fatalf("expected very strong, got %q", res.Strength)
	}
}

func TestPolicyMissingClassNamesClass(t *testing.T) {
	p := NewPolicy(DefaultPolicyConfig())

	cases := map[string]string{
		"lowercase9!x":  "uppercase",
		"UPPERCASE9!X":  "lowercase",
		"NoDigitsHere!": "digit",
		"NoSpecials99x": "special",
	}
	for pw, class := range cases {
		res := p.Validate(pw, "", "")
		if res.Valid {
			t.Fatalf("%q: expected invalid", pw)
		}
		if !containsFold(res.Errors, class) {
			t.Fatalf("%q: expected error naming %q, got %v", pw, class, res.Errors)
		}
	}
}

func TestPolicyRejectsIdentityInPassword(t *testing.T) {
	p := NewPolicy(DefaultPolicyConfig())

	res := p.Validate("Xalice#9Zq!w", "Alice", "")
	if res.Valid || !containsFold(res.Errors, "username") {
		t.Fatalf("expected username error, got %+v", res)
	}

	res = p.Validate("Alice.Smith#92", "", "alice.smith@x.com")
	if res.Valid || !containsFold(res.Errors, "email") {
		t.Fatalf("expected email error, got %+v", res)
	}

	// Local parts of three characters or fewer are ignored.
	res = p.Validate("Bob#Strong92x", "", "bob@x.com")
	if !res.Valid {
		t.Fatalf("expected short local part to be ignored, got %v", res.Errors)
	}
}

func TestPolicyForbiddenAndKeyboard(t *testing.T) {
	p := NewPolicy(DefaultPolicyConfig())

	res := p.Validate("MyPassword#12", "", "")
	if res.Valid || !containsFold(res.Errors, "common") {
		t.Fatalf("expected forbidden substring error, got %+v", res)
	}

	res = p.Validate("Zxcvbnm#12Aa", "", "")
	if res.Valid || !containsFold(res.Errors, "keyboard") {
		t.Fatalf("expected keyboard error, got %+v", res)
	}

	res = p.Validate("Mnbvcxz#12Aa", "", "")
	if res.Valid || !containsFold(res.Errors, "keyboard") {
		t.Fatalf("expected reversed keyboard error, got %+v", res)
	}
}

func TestPolicyPenaltiesDoNotInvalidate(t *testing.T) {
	p := NewPolicy(DefaultPolicyConfig())

	res := p.Validate("Aaaa#9xyzQ!!", "", "")
	if !res.Valid {
		t.Fatalf("expected valid, got errors %v", res.Errors)
	}
	if res.Score != 3.3 {
		t.Fatalf("expected score 3.3, got %v", res.Score)
	}
	if res.Strength != StrengthStrong {
		t.Fatalf("expected strong, got %q", res.Strength)
	}
	if !containsFold(res.Suggestions, "repeating") || !containsFold(res.Suggestions, "letter sequences") {
		t.Fatalf("expected penalty suggestions, got %v", res.Suggestions)
	}
}

func TestPolicyLengthBounds(t *testing.T) {
	p := NewPolicy(DefaultPolicyConfig())

	res := p.Validate("", "", "")
	if res.Valid || res.Score != 0 || res.Strength != StrengthVeryWeak {
		t.Fatalf("unexpected empty result: %+v", res)
	}

	res = p.Validate("Ab1!", "", "")
	if res.Valid || !containsFold(res.Errors, "at least 8") {
		t.Fatalf("expected too short error, got %+v", res)
	}

	res = p.Validate(strings.Repeat("Ab1!", 33), "", "")
	if res.Valid || !containsFold(res.Errors, "at most 128") {
		t.Fatalf("expected too long error, got %+v", res)
	}
}

func TestPolicyScoreBoundsAndDeterminism(t *testing.T) {
	p := NewPolicy(DefaultPolicyConfig())

	inputs := []string{"", "a", "password", "aaaaaaaa", "Tr0ub4dor&3!", "qwerty123456admin", strings.Repeat("Zz9#", 40)}
	for _, in := range inputs {
		a := p.Validate(in, "user", "someone@x.com")
		b := p.Validate(in, "user", "someone@x.com")
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("%q: non-deterministic result", in)
		}
		if a.Score < 0 || a.Score > 5 {
			t.Fatalf("%q: score out of range: %v", in, a.Score)
		}
		if a.Strength != StrengthForScore(a.Score) {
			t.Fatalf("%q: strength %q does not match score %v", in, a.Strength, a.Score)
		}
	}
}
