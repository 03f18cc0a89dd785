package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"postdesk/internal/config"
	"postdesk/internal/search"
	"postdesk/internal/store"
	"postdesk/internal/tags"
)

// untaggedPosts is the slice of the post store used by backfillTags.
type untaggedPosts interface {
	ListUntagged(ctx context.Context) ([]store.UntaggedPost, error)
	SetTags(ctx context.Context, id uuid.UUID, tags []string) error
}

// backfillTags derives tags from the title of every post stored without
// tags. Posts whose title yields nothing are left alone.
func backfillTags(ctx context.Context, posts untaggedPosts) error {
	items, err := posts.ListUntagged(ctx)
	if err != nil {
		return err
	}
	var updated, skipped int
	for _, p := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		derived := tags.Derive(p.Title)
		if len(derived) == 0 {
			skipped++
			continue
		}
		if err := posts.SetTags(ctx, p.ID, derived); err != nil {
			return fmt.Errorf("post %s: %w", p.ID, err)
		}
		slog.Debug("tags derived", "post_id", p.ID, "tags", derived)
		updated++
	}
	slog.Info("tag backfill finished", "scanned", len(items), "updated", updated, "skipped", skipped)
	return nil
}

type templateAssigner interface {
	AssignTemplateAuthor(ctx context.Context) (int64, error)
}

// backfillCategoryAuthor turns ownerless categories into system templates.
func backfillCategoryAuthor(ctx context.Context, cats templateAssigner) error {
	n, err := cats.AssignTemplateAuthor(ctx)
	if err != nil {
		return err
	}
	slog.Info("category author backfill finished", "updated", n)
	return nil
}

// reindex rebuilds the search index from the published posts.
func reindex(ctx context.Context, cfg *config.Config, posts search.Posts) error {
	if cfg.MeiliURL == "" {
		return errors.New("MEILI_URL is not set")
	}
	meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
	defer meili.Close()

	n, err := search.NewService(meili, posts).Reindex(ctx)
	if err != nil {
		return err
	}
	slog.Info("search reindex finished", "documents", n)
	return nil
}
