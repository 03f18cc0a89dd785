package client

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"postdesk/internal/models"
)

// State is the client's mirror of the server's post list plus the last
// error shown to the user. Every read returns copies, so callers cannot
// mutate the mirror behind its back.
type State struct {
	mu    sync.RWMutex
	posts []models.Post
	err   string
}

// Snapshot is a point-in-time copy of a State, used to roll back.
type Snapshot struct {
	posts []models.Post
	err   string
}

// NewState returns an empty state.
func NewState() *State {
	return &State{}
}

// Posts returns a copy of the mirrored posts.
func (s *State) Posts() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePosts(s.posts)
}

// Post returns a copy of the post with id.
func (s *State) Post(id uuid.UUID) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.posts[i].Clone(), true
	}
	return models.Post{}, false
}

// Error returns the current error message, or "".
func (s *State) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Set replaces the whole list.
func (s *State) Set(posts []models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = clonePosts(posts)
}

// Patch applies fn to the post with id. It reports whether the post exists.
func (s *State) Patch(id uuid.UUID, fn func(p *models.Post)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return false
	}
	fn(&s.posts[i])
	return true
}

// Replace swaps in p for the entry with the same id.
func (s *State) Replace(p models.Post) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(p.ID)
	if i < 0 {
		return false
	}
	s.posts[i] = p.Clone()
	return true
}

// Prepend inserts p at the front of the list.
func (s *State) Prepend(p models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = slices.Insert(s.posts, 0, p.Clone())
}

// Remove drops the post with id.
func (s *State) Remove(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.posts = slices.Delete(s.posts, i, i+1)
	return true
}

// SetError records a message for the user.
func (s *State) SetError(msg string) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
}

// ClearError removes the current message.
func (s *State) ClearError() {
	s.SetError("")
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{posts: clonePosts(s.posts), err: s.err}
}

// Revert restores a snapshot's posts. The current error message is kept.
func (s *State) Revert(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = clonePosts(snap.posts)
}

func (s *State) index(id uuid.UUID) int {
	return slices.IndexFunc(s.posts, func(p models.Post) bool { return p.ID == id })
}

func clonePosts(in []models.Post) []models.Post {
	if in == nil {
		return nil
	}
	out := make([]models.Post, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
