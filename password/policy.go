package password

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Strength is the human label attached to a policy score.
type Strength string

const (
	StrengthVeryWeak   Strength = "very weak"
	StrengthWeak       Strength = "weak"
	StrengthFair       Strength = "fair"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very strong"
)

const (
	maxScore = 5.0

	// DefaultSpecialChars is the accepted special-character class.
	DefaultSpecialChars = "!@#$%^&*(),.?\":{}|<>_+-=[]\\;'/`~"
)

// PolicyConfig holds the tunable rule set of a [Policy].
type PolicyConfig struct {
	MinLength   int
	MaxLength   int
	BonusLength int

	SpecialChars     string
	Forbidden        []string
	KeyboardPatterns []string

	// MinEmailLocalPart is the local-part length above which containing
	// the email local part is rejected.
	MinEmailLocalPart int
}

// DefaultPolicyConfig returns the production rule set.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		MinLength:    8,
		MaxLength:    128,
		BonusLength:  12,
		SpecialChars: DefaultSpecialChars,
		Forbidden: []string{
			"password", "123456", "qwerty", "admin", "user",
			"login", "welcome", "letmein", "abc123", "master",
			"monkey", "dragon", "football", "baseball", "iloveyou",
			"trustno1", "sunshine", "princess", "starwars",
		},
		KeyboardPatterns: []string{
			"qwertyuiop", "asdfghjkl", "zxcvbnm",
			"qazwsx", "wsxedc", "edcrfv",
			"1qaz2wsx", "2wsx3edc", "3edc4rfv",
			"q1w2e3r4", "1q2w3e4r", "a1s2d3f4",
		},
		MinEmailLocalPart: 3,
	}
}

// Result is the outcome of [Policy.Validate].
type Result struct {
	Valid       bool     `json:"valid"`
	Score       float64  `json:"score"`
	Strength    Strength `json:"strength"`
	Errors      []string `json:"errors"`
	Suggestions []string `json:"suggestions"`
}

// Policy scores and validates candidate passwords. It holds no mutable
// state and is safe for concurrent use.
type Policy struct {
	cfg      PolicyConfig
	keyboard []string
}

// NewPolicy returns a Policy for cfg. Zero length bounds fall back to the
// defaults.
func NewPolicy(cfg PolicyConfig) *Policy {
	def := DefaultPolicyConfig()
	if cfg.MinLength <= 0 {
		cfg.MinLength = def.MinLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	if cfg.BonusLength <= 0 {
		cfg.BonusLength = def.BonusLength
	}
	if cfg.SpecialChars == "" {
		cfg.SpecialChars = def.SpecialChars
	}

	forbidden := make([]string, 0, len(cfg.Forbidden))
	for _, f := range cfg.Forbidden {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			forbidden = append(forbidden, f)
		}
	}
	cfg.Forbidden = forbidden

	// Reversed keyboard runs are precomputed once.
	keyboard := make([]string, 0, len(cfg.KeyboardPatterns)*2)
	for _, k := range cfg.KeyboardPatterns {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		keyboard = append(keyboard, k, reverse(k))
	}

	return &Policy{cfg: cfg, keyboard: keyboard}
}

// Validate scores password against the rule set. username and email are
// optional; empty values skip the similarity checks.
func (p *Policy) Validate(password, username, email string) Result {
	var (
		errs        []string
		suggestions []string
		score       float64
	)

	penalize := func(v float64) {
		score = math.Max(0, score-v)
	}

	if password == "" {
		return Result{
			Valid:       false,
			Score:       0,
			Strength:    StrengthVeryWeak,
			Errors:      []string{"password is required"},
			Suggestions: []string{"enter a password"},
		}
	}

	length := utf8.RuneCountInString(password)
	switch {
	case length < p.cfg.MinLength:
		errs = append(errs, fmt.Sprintf("password must be at least %d characters", p.cfg.MinLength))
		suggestions = append(suggestions, fmt.Sprintf("use at least %d characters", p.cfg.MinLength))
	case length > p.cfg.MaxLength:
		errs = append(errs, fmt.Sprintf("password must be at most %d characters", p.cfg.MaxLength))
	default:
		score++
		if length >= p.cfg.BonusLength {
			score++
		}
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(p.cfg.SpecialChars, r):
			hasSpecial = true
		}
	}

	classes := []struct {
		present    bool
		err        string
		suggestion string
	}{
		{hasUpper, "password must contain an uppercase letter", "add an uppercase letter (A-Z)"},
		{hasLower, "password must contain a lowercase letter", "add a lowercase letter (a-z)"},
		{hasDigit, "password must contain a digit", "add a digit (0-9)"},
		{hasSpecial, "password must contain a special character", "add a special character such as " + truncate(p.cfg.SpecialChars, 10)},
	}
	for _, c := range classes {
		if c.present {
			score += 0.5
			continue
		}
		errs = append(errs, c.err)
		suggestions = append(suggestions, c.suggestion)
	}

	lower := strings.ToLower(password)

	for _, f := range p.cfg.Forbidden {
		if strings.Contains(lower, f) {
			errs = append(errs, "password contains a common weak pattern")
			suggestions = append(suggestions, "avoid common words and simple patterns")
			penalize(1)
			break
		}
	}

	for _, k := range p.keyboard {
		if strings.Contains(lower, k) {
			errs = append(errs, "password contains a keyboard sequence")
			suggestions = append(suggestions, "avoid runs of adjacent keyboard keys")
			penalize(0.5)
			break
		}
	}

	if hasRepeatedRun(password, 3) {
		suggestions = append(suggestions, "avoid repeating the same character more than twice")
		penalize(0.5)
	}

	if u := strings.ToLower(strings.TrimSpace(username)); u != "" && strings.Contains(lower, u) {
		errs = append(errs, "password must not contain the username")
		suggestions = append(suggestions, "keep the password independent of the username")
		penalize(1)
	}

	if email != "" {
		local := strings.ToLower(strings.SplitN(email, "@", 2)[0])
		if utf8.RuneCountInString(local) > p.cfg.MinEmailLocalPart && strings.Contains(lower, local) {
			errs = append(errs, "password must not contain the email address")
			suggestions = append(suggestions, "keep the password independent of the email address")
			penalize(1)
		}
	}

	if hasNumericRun(password) {
		suggestions = append(suggestions, "avoid consecutive digit sequences")
		penalize(0.25)
	}
	if hasAlphaRun(lower) {
		suggestions = append(suggestions, "avoid consecutive letter sequences")
		penalize(0.25)
	}

	score = math.Min(maxScore, math.Max(0, score))

	switch {
	case score < 2:
		suggestions = append(suggestions, "password is weak, consider a generated password")
	case score < 3:
		suggestions = append(suggestions, "increase length and variety to strengthen the password")
	case score < 4:
		suggestions = append(suggestions, "password strength is good")
	default:
		if len(suggestions) == 0 {
			suggestions = append(suggestions, "password strength is excellent")
		}
	}

	return Result{
		Valid:       len(errs) == 0,
		Score:       math.Round(score*10) / 10,
		Strength:    StrengthForScore(score),
		Errors:      errs,
		Suggestions: suggestions,
	}
}

// StrengthForScore maps a clamped score to its label.
func StrengthForScore(score float64) Strength {
	switch {
	case score < 1:
		return StrengthVeryWeak
	case score < 2:
		return StrengthWeak
	case score < 3:
		return StrengthFair
	case score < 4:
		return StrengthStrong
	default:
		return StrengthVeryStrong
	}
}

func hasRepeatedRun(s string, n int) bool {
	var (
		prev rune
		run  int
	)
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

// hasNumericRun matches 012 through 789 plus the wrapping 890.
func hasNumericRun(s string) bool {
	for i := 0; i+2 < len(s); i++ {
		a, b, c := s[i], s[i+1], s[i+2]
		if !isDigit(a) || !isDigit(b) || !isDigit(c) {
			continue
		}
		if b == a+1 && c == b+1 {
			return true
		}
		if a == '8' && b == '9' && c == '0' {
			return true
		}
	}
	return false
}

// hasAlphaRun expects a lowercased input.
func hasAlphaRun(s string) bool {
	for i := 0; i+2 < len(s); i++ {
		a, b, c := s[i], s[i+1], s[i+2]
		if a < 'a' || a > 'z' || c > 'z' {
			continue
		}
		if b == a+1 && c == b+1 {
			return true
		}
	}
	return false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
