package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postdesk/internal/models"
)

func strPtr(s string) *string { return &s }

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			json.NewEncoder(w).Encode(map[string]any{"token": "tok-123", "user": map[string]string{"username": "ada"}})
		case "/api/posts":
			gotAuth = r.Header.Get("Authorization")
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "go", r.URL.Query().Get("tag"))
			json.NewEncoder(w).Encode(models.PostPage{Posts: []models.Post{{Title: "One"}}, Total: 1, Page: 2, Limit: 10})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	resp, err := c.Login(context.Background(), "ada", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", resp.Token)

	page, err := c.ListPosts(context.Background(), ListOptions{Page: 2, Tag: "go"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "One", page.Posts[0].Title)
}

func TestClientDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"Validation failed.","errors":[{"field":"title","message":"Title is required."}]}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CreatePost(context.Background(), PostInput{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Validation failed.", apiErr.Message)
	require.Len(t, apiErr.Fields, 1)
	assert.Equal(t, "title", apiErr.Fields[0].Field)
	assert.Equal(t, "Validation failed. Title is required.", errorMessage(err))
}

func TestClientUpdateOmitsNilFields(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/posts/"+id.String(), r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"title": "New"}, body)
		json.NewEncoder(w).Encode(models.Post{ID: id, Title: "New"})
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL).UpdatePost(context.Background(), id, PostInput{Title: strPtr("New")})
	require.NoError(t, err)
	assert.Equal(t, "New", p.Title)
}

func TestClientSendsMultipartWithImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "With image", r.FormValue("title"))

		f, h, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "cover.png", h.Filename)
		assert.Equal(t, "image/png", h.Header.Get("Content-Type"))
		assert.Equal(t, "png-bytes", string(data))

		img := "/uploads/image-1.png"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Post{ID: uuid.New(), Title: "With image", FeaturedImage: &img})
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL).CreatePost(context.Background(), PostInput{
		Title: strPtr("With image"),
		Image: &Image{Filename: "cover.png", ContentType: "image/png", Data: []byte("png-bytes")},
	})
	require.NoError(t, err)
	require.NotNil(t, p.FeaturedImage)
	assert.Equal(t, "/uploads/image-1.png", *p.FeaturedImage)
}

func TestClientReferencesUploadedImage(t *testing.T) {
	id := uuid.New()
	path := "/uploads/image-7.png"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/upload":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"filePath": path})
		case "/api/posts/" + id.String():
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]any{"image": path}, body)
			json.NewEncoder(w).Encode(models.Post{ID: id, FeaturedImage: &path})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	uploaded, err := c.Upload(context.Background(), Image{Filename: "a.png", ContentType: "image/png", Data: []byte("png")})
	require.NoError(t, err)
	require.Equal(t, path, uploaded)

	p, err := c.UpdatePost(context.Background(), id, PostInput{ImagePath: &uploaded})
	require.NoError(t, err)
	require.NotNil(t, p.FeaturedImage)
	assert.Equal(t, path, *p.FeaturedImage)
}

func TestClientStatusAndDelete(t *testing.T) {
	id := uuid.New()
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodPatch:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "archived", body["status"])
			json.NewEncoder(w).Encode(models.Post{ID: id, Status: models.PostStatusArchived})
		case http.MethodDelete:
			json.NewEncoder(w).Encode(map[string]string{"message": "Post deleted successfully."})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	p, err := c.UpdateStatus(context.Background(), id, models.PostStatusArchived)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusArchived, p.Status)
	require.NoError(t, c.DeletePost(context.Background(), id))

	assert.Equal(t, []string{
		"PATCH /api/posts/" + id.String() + "/status",
		"DELETE /api/posts/" + id.String(),
	}, calls)
}

func TestErrorMessageForTransportErrors(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.GetPost(context.Background(), "missing")
	require.Error(t, err)
	assert.NotEmpty(t, errorMessage(err))
}
