package authcore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/shuggg999/authcore/directory"
	"github.com/shuggg999/authcore/internal"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

const (
	usernameMinLen = 3
	usernameMaxLen = 50
	fullNameMaxLen = 100
	phoneMaxLen    = 20
)

// Register creates an unverified account with the default role and issues
// an email verification code.
//
// Each step commits on its own. If the code cannot be cached the user
// still exists and RegisterResult.VerificationIssued is false; a later
// ResendVerification recovers.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil || e.directory == nil {
		return nil, internalError(ErrEngineNotReady)
	}

	email := directory.NormalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)
	fullName := strings.TrimSpace(req.FullName)
	phone := strings.TrimSpace(req.Phone)

	if fields := validateRegistration(email, username, req.Password, fullName, phone, req.AgreeToTerms); len(fields) > 0 {
		e.metricInc(MetricRegisterPolicyRejected)
		return nil, validationError(fields)
	}

	exists, err := e.directory.EmailExists(ctx, email)
	if err != nil {
		return nil, internalError(err)
	}
	if exists {
		return nil, e.registerConflict(ctx, email, ErrEmailExists)
	}

	exists, err = e.directory.UsernameExists(ctx, username)
	if err != nil {
		return nil, internalError(err)
	}
	if exists {
		return nil, e.registerConflict(ctx, email, ErrUsernameExists)
	}

	if res := e.policy.Validate(req.Password, username, email); !res.Valid {
		e.metricInc(MetricRegisterPolicyRejected)
		e.emitAudit(ctx, directory.ActionRegister, AuditFailure, "", "", map[string]any{
			"email":  email,
			"reason": reasonWeakPassword,
		})
		return nil, weakPassword(res.Errors)
	}

	encoded, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, internalError(err)
	}

	role, err := e.directory.RoleByName(ctx, e.config.Register.DefaultRole)
	if err != nil {
		return nil, internalError(err)
	}

	user := &directory.User{
		Email:        email,
		Username:     username,
		PasswordHash: &encoded,
		FullName:     fullName,
		IsActive:     true,
		RoleID:       role.ID,
		Preferences:  req.Preferences,
	}
	if phone != "" {
		user.Phone = &phone
	}

	if err := e.directory.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, directory.ErrDuplicateEmail):
			return nil, e.registerConflict(ctx, email, ErrEmailExists)
		case errors.Is(err, directory.ErrDuplicateUsername):
			return nil, e.registerConflict(ctx, email, ErrUsernameExists)
		default:
			return nil, internalError(err)
		}
	}
	user.Role = *role
	userID := user.ID.String()

	out := &RegisterResult{User: summarize(user)}

	code, err := e.issueVerificationCode(ctx, email)
	if err != nil {
		e.logger.Warn("verification code not issued",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	} else {
		out.VerificationIssued = true
		if e.config.Register.ExposeDebugCode {
			out.DebugCode = code
		}
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, directory.ActionRegister, AuditSuccess, userID, "", map[string]any{
		"email":  email,
		"method": "email",
	})
	return out, nil
}

func (e *Engine) registerConflict(ctx context.Context, email string, sentinel error) *Error {
	e.metricInc(MetricRegisterConflict)

	code, field, msg := CodeEmailExists, "email", "email is already registered"
	if sentinel == ErrUsernameExists {
		code, field, msg = CodeUsernameExists, "username", "username is already taken"
	}
	e.emitAudit(ctx, directory.ActionRegister, AuditFailure, "", "", map[string]any{
		"email":  email,
		"reason": field + "_exists",
	})

	err := newError(KindConflict, code, sentinel, msg)
	err.Fields = map[string]string{field: msg}
	return err
}

// issueVerificationCode generates a fresh code and replaces any pending one.
func (e *Engine) issueVerificationCode(ctx context.Context, email string) (string, error) {
	code, err := internal.NewOTP(e.config.EmailVerification.CodeDigits)
	if err != nil {
		return "", err
	}
	if err := e.verificationStore.Save(ctx, email, code, e.config.EmailVerification.CodeTTL); err != nil {
		return "", err
	}
	return code, nil
}

func validateRegistration(email, username, password, fullName, phone string, terms bool) map[string]string {
	fields := map[string]string{}

	switch {
	case email == "":
		fields["email"] = "email is required"
	case !emailPattern.MatchString(email):
		fields["email"] = "email format is invalid"
	}

	n := utf8.RuneCountInString(username)
	switch {
	case n == 0:
		fields["username"] = "username is required"
	case n < usernameMinLen || n > usernameMaxLen:
		fields["username"] = "username must be 3 to 50 characters"
	case !usernamePattern.MatchString(username):
		fields["username"] = "username may only contain letters, digits, '_' and '-'"
	}

	if password == "" {
		fields["password"] = "password is required"
	}

	switch n := utf8.RuneCountInString(fullName); {
	case n == 0:
		fields["full_name"] = "full name is required"
	case n > fullNameMaxLen:
		fields["full_name"] = "full name must be at most 100 characters"
	}

	if utf8.RuneCountInString(phone) > phoneMaxLen {
		fields["phone"] = "phone must be at most 20 characters"
	}

	if !terms {
		fields["agree_to_terms"] = "terms of service must be accepted"
	}

	return fields
}

func weakPassword(reasons []string) *Error {
	err := newError(KindPolicy, CodeWeakPassword, ErrWeakPassword, "password does not meet the policy")
	err.Details = append([]string(nil), reasons...)
	return err
}
