// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"postdesk/internal/authz"
	"postdesk/internal/models"
)

func TestUserStoreCreate(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()

	username := "test-create-" + uuid.NewString()[:8]
	t.Cleanup(func() { cleanUsers(t, db, username) })

	user, err := s.Create(ctx, username, "testpass123", "Test User", authz.RoleEditor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if user.ID == uuid.Nil {
		t.Error("expected non-nil UUID")
	}
	if user.Username != username {
		t.Errorf("username: got %q, want %q", user.Username, username)
	}
	if user.Role != authz.RoleEditor {
		t.Errorf("role: got %q, want %q", user.Role, authz.RoleEditor)
	}
	if user.TOTPEnabled {
		t.Error("expected totp_enabled=false for new user")
	}
	if user.PasswordHash == "" || user.PasswordHash == "testpass123" {
		t.Error("password must be stored hashed")
	}
	if !s.CheckPassword(user, "testpass123") {
		t.Error("CheckPassword rejected the right password")
	}
	if s.CheckPassword(user, "wrong") {
		t.Error("CheckPassword accepted a wrong password")
	}
}

func TestUserStoreFindByUsername(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()

	username := "test-find-" + uuid.NewString()[:8]
	t.Cleanup(func() { cleanUsers(t, db, username) })

	user, err := s.FindByUsername(ctx, username)
	if err != nil {
		t.Fatalf("FindByUsername (not found): %v", err)
	}
	if user != nil {
		t.Error("expected nil for non-existent user")
	}

	created, err := s.Create(ctx, username, "pass", "", authz.RoleViewer)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	user, err = s.FindByUsername(ctx, username)
	if err != nil || user == nil {
		t.Fatalf("FindByUsername: %v, %v", user, err)
	}
	if user.ID != created.ID {
		t.Errorf("ID mismatch: got %s, want %s", user.ID, created.ID)
	}

	taken, err := s.UsernameTaken(ctx, username)
	if err != nil || !taken {
		t.Errorf("UsernameTaken = %v, %v", taken, err)
	}
}

func TestUserStoreDisplayName(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()

	withName := "test-dn-a-" + uuid.NewString()[:8]
	noName := "test-dn-b-" + uuid.NewString()[:8]
	t.Cleanup(func() { cleanUsers(t, db, withName, noName) })

	a, _ := s.Create(ctx, withName, "pass", "Full Name", authz.RoleEditor)
	b, _ := s.Create(ctx, noName, "pass", "", authz.RoleEditor)

	tests := []struct {
		id   string
		want string
	}{
		{a.ID.String(), "Full Name"},
		{b.ID.String(), noName},
		{uuid.NewString(), models.AnonymousAuthor},
		{"not-a-uuid", models.AnonymousAuthor},
	}
	for _, tt := range tests {
		got, err := s.DisplayName(ctx, tt.id)
		if err != nil {
			t.Errorf("DisplayName(%s): %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("DisplayName(%s) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestUserStoreTOTP(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()

	username := "test-totp-" + uuid.NewString()[:8]
	t.Cleanup(func() { cleanUsers(t, db, username) })

	user, err := s.Create(ctx, username, "pass", "", authz.RoleEditor)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetTOTPSecret(ctx, user.ID, "JBSWY3DPEHPK3PXP"); err != nil {
		t.Fatalf("SetTOTPSecret: %v", err)
	}
	if err := s.EnableTOTP(ctx, user.ID); err != nil {
		t.Fatalf("EnableTOTP: %v", err)
	}

	got, _ := s.FindByID(ctx, user.ID)
	if got.TOTPSecret == nil || *got.TOTPSecret != "JBSWY3DPEHPK3PXP" || !got.TOTPEnabled {
		t.Errorf("totp state = %v, %v", got.TOTPSecret, got.TOTPEnabled)
	}
}
