package client

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"postdesk/internal/models"
	"postdesk/internal/tags"
)

// PreviewPrefix marks a featured image that exists only locally while its
// upload is in flight.
const PreviewPrefix = "preview:"

// IsPreview reports whether path is a local preview reference.
func IsPreview(path string) bool {
	return strings.HasPrefix(path, PreviewPrefix)
}

// API is the subset of the Postdesk API the coordinator drives. *Client
// implements it.
type API interface {
	ListPosts(ctx context.Context, opts ListOptions) (*models.PostPage, error)
	CreatePost(ctx context.Context, in PostInput) (*models.Post, error)
	UpdatePost(ctx context.Context, id uuid.UUID, in PostInput) (*models.Post, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.PostStatus) (*models.Post, error)
	DeletePost(ctx context.Context, id uuid.UUID) error
}

// Coordinator applies mutations to a State before the server confirms
// them. On success the local entry is replaced by the server's version; on
// failure the state reverts to the snapshot taken before the mutation and
// the error is recorded. Mutations run one at a time.
type Coordinator struct {
	api   API
	state *State
	mu    sync.Mutex
}

// NewCoordinator creates a coordinator over api and state.
func NewCoordinator(api API, state *State) *Coordinator {
	return &Coordinator{api: api, state: state}
}

// State returns the state the coordinator maintains.
func (c *Coordinator) State() *State {
	return c.state
}

// Load replaces the state with one page from the server.
func (c *Coordinator) Load(ctx context.Context, opts ListOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	page, err := c.api.ListPosts(ctx, opts)
	if err != nil {
		c.state.SetError("Failed to load posts: " + errorMessage(err))
		return err
	}
	c.state.ClearError()
	c.state.Set(page.Posts)
	return nil
}

// CreatePost sends a new post and prepends the server's copy on success.
// Nothing is shown locally until the server assigns an id.
func (c *Coordinator) CreatePost(ctx context.Context, in PostInput) (*models.Post, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	post, err := c.api.CreatePost(ctx, in)
	if err != nil {
		c.state.SetError("Failed to create post: " + errorMessage(err))
		return nil, err
	}
	c.state.ClearError()
	c.state.Prepend(*post)
	return post, nil
}

// UpdatePost applies in locally, substituting a preview reference for a
// new image, then sends it.
func (c *Coordinator) UpdatePost(ctx context.Context, id uuid.UUID, in PostInput) error {
	return c.mutate("Failed to update post. Reverting changes: ",
		func() {
			c.state.Patch(id, func(p *models.Post) { applyInput(p, in) })
		},
		func() (*models.Post, error) { return c.api.UpdatePost(ctx, id, in) },
	)
}

// UpdateStatus changes a post's status locally, then sends it.
func (c *Coordinator) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PostStatus) error {
	return c.mutate("Failed to update post status. Reverting changes: ",
		func() {
			c.state.Patch(id, func(p *models.Post) { p.Status = status })
		},
		func() (*models.Post, error) { return c.api.UpdateStatus(ctx, id, status) },
	)
}

// DeletePost removes a post locally, then sends the delete.
func (c *Coordinator) DeletePost(ctx context.Context, id uuid.UUID) error {
	return c.mutate("Failed to delete post. Reverting changes: ",
		func() { c.state.Remove(id) },
		func() (*models.Post, error) { return nil, c.api.DeletePost(ctx, id) },
	)
}

// mutate runs the optimistic protocol: snapshot, apply locally, send, then
// reconcile with the response or roll back.
func (c *Coordinator) mutate(failPrefix string, apply func(), send func() (*models.Post, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.state.Snapshot()
	c.state.ClearError()
	apply()

	post, err := send()
	if err != nil {
		c.state.Revert(snap)
		c.state.SetError(failPrefix + errorMessage(err))
		return err
	}
	if post != nil {
		c.state.Replace(*post)
	}
	return nil
}

// applyInput mirrors the server's partial-update rules on a local post.
func applyInput(p *models.Post, in PostInput) {
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		p.Content = strings.TrimSpace(*in.Content)
	}
	if in.Status != nil {
		if st, ok := models.ParseStatus(*in.Status); ok {
			p.Status = st
		}
	}
	if in.Author != nil {
		if a := strings.TrimSpace(*in.Author); a != "" {
			p.Author = a
		}
	}
	if in.Tags != nil {
		if parsed := tags.Parse(*in.Tags); len(parsed) > 0 {
			p.Tags = parsed
		} else {
			p.Tags = tags.Derive(p.Title)
		}
	}
	if in.Image != nil {
		preview := PreviewPrefix + in.Image.Filename
		p.FeaturedImage = &preview
	} else if in.ImagePath != nil && *in.ImagePath != "" {
		path := *in.ImagePath
		p.FeaturedImage = &path
	}
}
