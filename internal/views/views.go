// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package views counts post reads by viewer-role users, at most once per
// user within a sliding window.
package views

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"postdesk/internal/authz"
	"postdesk/internal/models"
)

// DefaultWindow is how long a repeat read by the same user is ignored.
const DefaultWindow = 24 * time.Hour

// Recorder persists a counted view: viewCount+1 and an upsert of the
// user's viewedBy entry, applied together.
type Recorder interface {
	RecordView(ctx context.Context, postID uuid.UUID, userID string, at time.Time) error
}

// Tracker decides whether a read counts and records it.
type Tracker struct {
	rec    Recorder
	window time.Duration
	now    func() time.Time
}

// NewTracker creates a tracker. A non-positive window falls back to
// DefaultWindow.
func NewTracker(rec Recorder, window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{rec: rec, window: window, now: time.Now}
}

// Window returns the dedup window.
func (t *Tracker) Window() time.Duration {
	return t.window
}

// Due reports whether a read by userID at now should be counted: the user
// has no entry, or their last counted view is at least one window old.
func (t *Tracker) Due(post *models.Post, userID string, now time.Time) bool {
	entry := post.FindView(userID)
	if entry == nil {
		return true
	}
	return now.Sub(entry.LastViewed) >= t.window
}

// Track counts the read if the caller is a viewer and the read is due.
// On success the post is updated in place. A persistence failure is
// logged and leaves the post untouched; the read itself is not failed.
// Track reports whether the view was counted.
func (t *Tracker) Track(ctx context.Context, caller authz.Caller, post *models.Post) bool {
	viewer, ok := caller.(authz.Authenticated)
	if !ok || viewer.Role != authz.RoleViewer || viewer.UserID == "" {
		return false
	}

	now := t.now().UTC()
	if !t.Due(post, viewer.UserID, now) {
		return false
	}

	if err := t.rec.RecordView(ctx, post.ID, viewer.UserID, now); err != nil {
		slog.Warn("record view failed", "error", err, "post_id", post.ID, "user_id", viewer.UserID)
		return false
	}

	post.ViewCount++
	if entry := post.FindView(viewer.UserID); entry != nil {
		entry.LastViewed = now
	} else {
		post.ViewedBy = append(post.ViewedBy, models.ViewEntry{UserID: viewer.UserID, LastViewed: now})
	}
	return true
}
