package stockwise

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/types"
	"github.com/xraph/stockwise/user"
)

// SignupInput creates an account.
type SignupInput struct {
	UserID           string `json:"userid" validate:"required"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=6"`
	SecurityQuestion string `json:"securityQuestion" validate:"required"`
	SecurityAnswer   string `json:"securityAnswer" validate:"required"`
}

// Identity is what a password reset reveals about an account.
type Identity struct {
	UserID           string `json:"userid"`
	SecurityQuestion string `json:"securityQuestion"`
}

type passwordInput struct {
	Password string `json:"newPassword" validate:"required,min=6"`
}

type emailInput struct {
	Email string `json:"newEmail" validate:"required,email"`
}

type usernameInput struct {
	UserID string `json:"newUsername" validate:"required"`
}

// normalizeAnswer makes security answers case and whitespace insensitive.
func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (t *Tracker) hash(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), t.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("stockwise: hash secret: %w", err)
	}
	return string(h), nil
}

// compareHash maps a mismatch to wrong, keeping other bcrypt failures intact.
func compareHash(hash, secret string, wrong error) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return wrong
	}
	if err != nil {
		return fmt.Errorf("stockwise: compare hash: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// Signup creates an account with hashed password and security answer.
func (t *Tracker) Signup(ctx context.Context, in SignupInput) (*user.User, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Email = strings.TrimSpace(in.Email)
	in.SecurityQuestion = strings.TrimSpace(in.SecurityQuestion)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	passwordHash, err := t.hash(in.Password)
	if err != nil {
		return nil, err
	}
	answerHash, err := t.hash(normalizeAnswer(in.SecurityAnswer))
	if err != nil {
		return nil, err
	}

	u := &user.User{
		Entity:             types.NewEntity(),
		ID:                 id.NewUserID(),
		UserID:             in.UserID,
		Email:              in.Email,
		PasswordHash:       passwordHash,
		SecurityQuestion:   in.SecurityQuestion,
		SecurityAnswerHash: answerHash,
	}
	if err := t.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	t.logger.Info("user created", "userid", u.UserID)
	t.plugins.EmitUserCreated(ctx, u)
	return u, nil
}

// lookup finds a user by user name, then by email.
func (t *Tracker) lookup(ctx context.Context, login string) (*user.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, ValidationError{Field: "useridOrEmail", Message: "is required"}
	}
	u, err := t.store.GetUser(ctx, login)
	if err == nil || !IsNotFound(err) {
		return u, err
	}
	return t.store.GetUserByEmail(ctx, login)
}

// Signin checks credentials. login is a user name or an email.
func (t *Tracker) Signin(ctx context.Context, login, password string) (*user.User, error) {
	u, err := t.lookup(ctx, login)
	if err != nil {
		if IsNotFound(err) {
			t.plugins.EmitAuthFailed(ctx, login, err)
		}
		return nil, err
	}
	if err := compareHash(u.PasswordHash, password, ErrIncorrectPassword); err != nil {
		t.logger.Warn("signin rejected", "userid", u.UserID)
		t.plugins.EmitAuthFailed(ctx, login, err)
		return nil, err
	}

	t.plugins.EmitUserSignedIn(ctx, u)
	return u, nil
}

// IdentifyUser returns the security question of an account for a password
// reset.
func (t *Tracker) IdentifyUser(ctx context.Context, login string) (*Identity, error) {
	u, err := t.lookup(ctx, login)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: u.UserID, SecurityQuestion: u.SecurityQuestion}, nil
}

// VerifySecurityAnswer checks the answer to the account's security question.
func (t *Tracker) VerifySecurityAnswer(ctx context.Context, userID, answer string) error {
	u, err := t.store.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return err
	}
	if err := compareHash(u.SecurityAnswerHash, normalizeAnswer(answer), ErrIncorrectAnswer); err != nil {
		t.plugins.EmitAuthFailed(ctx, u.UserID, err)
		return err
	}
	return nil
}

// ResetPassword sets a new password after a verified security answer.
func (t *Tracker) ResetPassword(ctx context.Context, userID, newPassword string) error {
	if err := validateStruct(passwordInput{Password: newPassword}); err != nil {
		return err
	}
	u, err := t.store.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return err
	}
	return t.setPassword(ctx, u, newPassword)
}

// ChangePassword sets a new password after checking the current one.
func (t *Tracker) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := validateStruct(passwordInput{Password: newPassword}); err != nil {
		return err
	}
	u, err := t.store.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return err
	}
	if err := compareHash(u.PasswordHash, currentPassword, ErrIncorrectPassword); err != nil {
		t.plugins.EmitAuthFailed(ctx, u.UserID, err)
		return err
	}
	return t.setPassword(ctx, u, newPassword)
}

func (t *Tracker) setPassword(ctx context.Context, u *user.User, password string) error {
	h, err := t.hash(password)
	if err != nil {
		return err
	}
	u.PasswordHash = h
	u.Touch()
	if err := t.store.UpdateUser(ctx, u); err != nil {
		return err
	}
	t.logger.Info("password changed", "userid", u.UserID)
	return nil
}

// UpdateUsername renames an account.
func (t *Tracker) UpdateUsername(ctx context.Context, userID, newUsername string) (*user.User, error) {
	in := usernameInput{UserID: strings.TrimSpace(newUsername)}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	u, err := t.store.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	if u.UserID == in.UserID {
		return u, nil
	}
	old := u.UserID
	u.UserID = in.UserID
	u.Touch()
	if err := t.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	t.logger.Info("username changed", "from", old, "to", u.UserID)
	return u, nil
}

// UpdateEmail changes an account's email.
func (t *Tracker) UpdateEmail(ctx context.Context, userID, newEmail string) (*user.User, error) {
	in := emailInput{Email: strings.TrimSpace(newEmail)}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	u, err := t.store.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	if u.Email == in.Email {
		return u, nil
	}
	u.Email = in.Email
	u.Touch()
	if err := t.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	t.logger.Info("email changed", "userid", u.UserID)
	return u, nil
}

// DeleteAccount removes an account.
func (t *Tracker) DeleteAccount(ctx context.Context, userID string) error {
	u, err := t.store.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return err
	}
	if err := t.store.DeleteUser(ctx, u.ID); err != nil {
		return err
	}
	t.logger.Info("account deleted", "userid", u.UserID)
	t.plugins.EmitUserDeleted(ctx, u.UserID)
	return nil
}
