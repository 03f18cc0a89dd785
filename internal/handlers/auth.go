// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"postdesk/internal/apperr"
	"postdesk/internal/authz"
	"postdesk/internal/middleware"
	"postdesk/internal/models"
	"postdesk/internal/session"
)

// totpIssuer labels the account in authenticator apps.
const totpIssuer = "Postdesk"

// UserStore is the identity directory used by the auth endpoints.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, username, password, fullName string, role authz.Role) (*models.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	SetTOTPSecret(ctx context.Context, userID uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, userID uuid.UUID) error
	CheckPassword(user *models.User, password string) bool
}

// SessionManager creates and ends sessions.
type SessionManager interface {
	Create(ctx context.Context, w http.ResponseWriter, data *session.Data) (string, error)
	Update(ctx context.Context, r *http.Request, data *session.Data) error
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Auth groups the authentication endpoints.
type Auth struct {
	sessions SessionManager
	users    UserStore
}

// NewAuth creates the auth handlers.
func NewAuth(sessions SessionManager, users UserStore) *Auth {
	return &Auth{sessions: sessions, users: users}
}

type authResponse struct {
	User              *models.User `json:"user,omitempty"`
	Token             string       `json:"token,omitempty"`
	TwoFactorRequired bool         `json:"twoFactorRequired,omitempty"`
}

// Register handles POST /auth/register. New accounts are viewers.
func (a *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		FullName string `json:"fullName"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := validateRegistration(req.Username, req.Password, req.FullName); err != nil {
		writeError(w, r, err)
		return
	}

	taken, err := a.users.UsernameTaken(r.Context(), req.Username)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to create account.", err))
		return
	}
	if taken {
		writeError(w, r, apperr.InvalidArgument("username", "Username is already taken."))
		return
	}

	user, err := a.users.Create(r.Context(), req.Username, req.Password, req.FullName, authz.RoleViewer)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to create account.", err))
		return
	}
	token, err := a.startSession(r.Context(), w, user, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
}

// Login handles POST /auth/login. Accounts with 2FA enabled either send
// their code along or receive a pending session to finish via
// POST /auth/2fa/verify.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Code     string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := a.users.FindByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		writeError(w, r, apperr.Internal("Login failed.", err))
		return
	}
	if user == nil || !a.users.CheckPassword(user, req.Password) {
		writeError(w, r, apperr.Unauthorized("Invalid username or password."))
		return
	}

	done := !user.TOTPEnabled
	if user.TOTPEnabled && req.Code != "" {
		if user.TOTPSecret == nil || !totp.Validate(strings.TrimSpace(req.Code), *user.TOTPSecret) {
			writeError(w, r, apperr.Unauthorized("Invalid two-factor code."))
			return
		}
		done = true
	}

	token, err := a.startSession(r.Context(), w, user, done)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !done {
		writeJSON(w, http.StatusOK, authResponse{Token: token, TwoFactorRequired: true})
		return
	}
	slog.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{User: user, Token: token})
}

// Verify handles POST /auth/2fa/verify, completing a pending login.
func (a *Auth) Verify(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		writeError(w, r, apperr.Unauthorized("Log in first."))
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := a.users.FindByID(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, r, apperr.Internal("Verification failed.", err))
		return
	}
	if user == nil || user.TOTPSecret == nil {
		writeError(w, r, apperr.Unauthorized("Log in first."))
		return
	}
	if !totp.Validate(strings.TrimSpace(req.Code), *user.TOTPSecret) {
		writeError(w, r, apperr.InvalidArgument("code", "Invalid code. Please try again."))
		return
	}

	sess.TwoFADone = true
	if err := a.sessions.Update(r.Context(), r, sess); err != nil {
		writeError(w, r, apperr.Internal("Verification failed.", err))
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: user})
}

// Logout handles POST /auth/logout.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	writeJSON(w, http.StatusOK, MessageBody{Message: "Logged out."})
}

// Me handles GET /auth/me.
func (a *Auth) Me(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: user})
}

// Setup2FA handles POST /auth/2fa/setup: it issues a new secret and returns
// it together with a QR code to scan. 2FA stays off until Enable2FA.
func (a *Auth) Setup2FA(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Username,
	})
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to set up two-factor authentication.", err))
		return
	}
	if err := a.users.SetTOTPSecret(r.Context(), user.ID, key.Secret()); err != nil {
		writeError(w, r, apperr.Internal("Failed to set up two-factor authentication.", err))
		return
	}

	qrPNG, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to generate QR code.", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"secret":     key.Secret(),
		"otpauthUrl": key.URL(),
		"qrCode":     "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrPNG),
	})
}

// Enable2FA handles POST /auth/2fa/enable by confirming a code against the
// secret issued by Setup2FA.
func (a *Auth) Enable2FA(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if user.TOTPSecret == nil {
		writeError(w, r, apperr.InvalidArgument("code", "Run two-factor setup first."))
		return
	}
	if !totp.Validate(strings.TrimSpace(req.Code), *user.TOTPSecret) {
		writeError(w, r, apperr.InvalidArgument("code", "Invalid code. Please try again."))
		return
	}
	if err := a.users.EnableTOTP(r.Context(), user.ID); err != nil {
		writeError(w, r, apperr.Internal("Failed to enable two-factor authentication.", err))
		return
	}
	slog.Info("2fa enabled", "user_id", user.ID)
	writeJSON(w, http.StatusOK, MessageBody{Message: "Two-factor authentication enabled."})
}

func (a *Auth) startSession(ctx context.Context, w http.ResponseWriter, user *models.User, done bool) (string, error) {
	token, err := a.sessions.Create(ctx, w, &session.Data{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName(),
		Role:        string(user.Role),
		TwoFADone:   done,
	})
	if err != nil {
		return "", apperr.Internal("Failed to start session.", err)
	}
	return token, nil
}

// currentUser loads the authenticated caller's account.
func (a *Auth) currentUser(r *http.Request) (*models.User, error) {
	uid := authz.UserID(authz.FromContext(r.Context()))
	id, err := uuid.Parse(uid)
	if err != nil {
		return nil, apperr.Unauthorized("Authentication required.")
	}
	user, err := a.users.FindByID(r.Context(), id)
	if err != nil {
		return nil, apperr.Internal("Failed to load account.", err)
	}
	if user == nil {
		return nil, apperr.Unauthorized("Authentication required.")
	}
	return user, nil
}
