package search

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const indexPosts = "postdesk_posts"

// Meili is the Meilisearch-backed post index.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the post index.
// An unreachable server is tolerated; the health loop picks it up later.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		slog.Warn("meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        indexPosts,
		PrimaryKey: "id",
	}); err != nil {
		slog.Debug("create search index", "index", indexPosts, "error", err)
	}

	index := m.client.Index(indexPosts)
	filterable := []interface{}{"status", "categoryId", "tags", "authorId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		slog.Warn("update filterable attributes", "index", indexPosts, "error", err)
	}
	searchable := []string{"title", "tags", "content", "author"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		slog.Warn("update searchable attributes", "index", indexPosts, "error", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				slog.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search returns the ids of matching published posts in rank order.
func (m *Meili) Search(q string, limit int) ([]string, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	resp, err := m.client.Index(indexPosts).Search(q, &meili.SearchRequest{
		Limit:                int64(limit),
		Filter:               `status = "published"`,
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if id := decodeString(hit, "id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// IndexPost adds or replaces a single post document.
func (m *Meili) IndexPost(doc Document) error {
	return m.IndexPosts([]Document{doc})
}

// IndexPosts adds or replaces post documents in bulk.
func (m *Meili) IndexPosts(docs []Document) error {
	if _, err := m.client.Index(indexPosts).AddDocuments(docs, nil); err != nil {
		return fmt.Errorf("index posts: %w", err)
	}
	return nil
}

// DeletePost removes a post document.
func (m *Meili) DeletePost(id string) error {
	if _, err := m.client.Index(indexPosts).DeleteDocument(id, nil); err != nil {
		return fmt.Errorf("delete post document: %w", err)
	}
	return nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
