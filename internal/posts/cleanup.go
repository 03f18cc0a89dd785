// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package posts

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"postdesk/internal/storage"
)

// CleanupTask lists assets that became unreferenced once a post change was
// committed. It is only produced after the document write succeeded.
type CleanupTask struct {
	PostID uuid.UUID
	Paths  []string
}

// Empty reports whether there is nothing to remove.
func (t CleanupTask) Empty() bool {
	return len(t.Paths) == 0
}

// CleanupRunner executes cleanup tasks. Failures are the runner's to log;
// they never reach the request that produced the task.
type CleanupRunner interface {
	Run(ctx context.Context, task CleanupTask)
}

// InlineRunner removes assets synchronously, skipping the placeholder and
// anything already gone.
type InlineRunner struct {
	assets      storage.AssetStore
	placeholder string
}

// NewInlineRunner creates a runner deleting from assets.
func NewInlineRunner(assets storage.AssetStore, placeholder string) *InlineRunner {
	return &InlineRunner{assets: assets, placeholder: placeholder}
}

// Run deletes every path in the task.
func (r *InlineRunner) Run(ctx context.Context, task CleanupTask) {
	for _, p := range task.Paths {
		removed, err := storage.DeleteIfPresent(ctx, r.assets, p, r.placeholder)
		if err != nil {
			slog.Warn("asset cleanup failed", "error", err, "post_id", task.PostID, "path", p)
			continue
		}
		if removed {
			slog.Info("asset removed", "post_id", task.PostID, "path", p)
		}
	}
}
