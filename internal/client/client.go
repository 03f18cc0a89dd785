// Package client is a Go client for the Postdesk API together with the
// optimistic-update layer a UI builds on.
//
// [Client] speaks the JSON and multipart endpoints under /api. [State]
// mirrors the server's post list in memory, and [Coordinator] applies
// mutations to that mirror before the server confirms them, rolling back
// to a snapshot when a request fails.
//
// Basic usage:
//
//	api := client.NewClient("http://localhost:8080")
//	if _, err := api.Login(ctx, "editor", "password"); err != nil {
//		return err
//	}
//	state := client.NewState()
//	coord := client.NewCoordinator(api, state)
//	if err := coord.Load(ctx, client.ListOptions{}); err != nil {
//		return err
//	}
//	err := coord.UpdateStatus(ctx, id, models.PostStatusPublished)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"postdesk/internal/apperr"
	"postdesk/internal/models"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
	Fields  []apperr.FieldError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error: status=%d", e.Status)
	}
	return e.Message
}

// Client provides typed access to the Postdesk REST API. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	authToken string
}

// NewClient creates an API client. baseURL includes scheme and host, without
// a trailing slash or the /api prefix.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetAuthToken sets the bearer token sent with every request.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.authToken = token
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

// doJSON sends body as JSON and decodes the response into target.
func (c *Client) doJSON(ctx context.Context, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	return c.do(ctx, method, path, "application/json", reader, target)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return decodeResponse(resp, target)
}

// decodeResponse turns error statuses into *APIError and decodes the body
// of successful responses into target.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Error  string              `json:"error"`
			Errors []apperr.FieldError `json:"errors"`
		}
		if json.Unmarshal(raw, &body) == nil {
			apiErr.Message = body.Error
			apiErr.Fields = body.Errors
		}
		return apiErr
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// AuthResponse is returned by login and registration.
type AuthResponse struct {
	User              *models.User `json:"user"`
	Token             string       `json:"token"`
	TwoFactorRequired bool         `json:"twoFactorRequired"`
}

// Login authenticates and keeps the returned token for later requests.
// When TwoFactorRequired is set, call VerifyTwoFactor next.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	c.SetAuthToken(out.Token)
	return &out, nil
}

// VerifyTwoFactor completes a pending login with a TOTP code.
func (c *Client) VerifyTwoFactor(ctx context.Context, code string) (*models.User, error) {
	var out AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/2fa/verify", map[string]string{"code": code}, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Logout ends the session and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.SetAuthToken("")
	return nil
}

// ListOptions filters a post listing. Zero values are omitted.
type ListOptions struct {
	Page     int
	Limit    int
	Category string
	Tag      string
	AuthorID string
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Category != "" {
		q.Set("category", o.Category)
	}
	if o.Tag != "" {
		q.Set("tag", o.Tag)
	}
	if o.AuthorID != "" {
		q.Set("authorId", o.AuthorID)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListPosts fetches one page of posts.
func (c *Client) ListPosts(ctx context.Context, opts ListOptions) (*models.PostPage, error) {
	var out models.PostPage
	if err := c.doJSON(ctx, http.MethodGet, "/api/posts"+opts.query(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPost fetches a post by id or slug.
func (c *Client) GetPost(ctx context.Context, idOrSlug string) (*models.Post, error) {
	var out models.Post
	if err := c.doJSON(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(idOrSlug), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Image is a file to upload with a post.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PostInput carries post fields for create and update. Nil fields are not
// sent, so an update leaves them unchanged on the server. ImagePath refers
// to a file returned by Upload and is ignored when Image is set.
type PostInput struct {
	Title     *string
	Content   *string
	Category  *string
	Status    *string
	Author    *string
	Tags      *string
	ImagePath *string
	Image     *Image
}

func (in PostInput) fields() map[string]string {
	out := make(map[string]string)
	set := func(k string, v *string) {
		if v != nil {
			out[k] = *v
		}
	}
	set("title", in.Title)
	set("content", in.Content)
	set("category", in.Category)
	set("status", in.Status)
	set("author", in.Author)
	set("tags", in.Tags)
	if in.Image == nil {
		set("image", in.ImagePath)
	}
	return out
}

// CreatePost creates a post, as multipart when an image is attached.
func (c *Client) CreatePost(ctx context.Context, in PostInput) (*models.Post, error) {
	var out models.Post
	if err := c.sendPost(ctx, http.MethodPost, "/api/posts", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePost applies a partial update.
func (c *Client) UpdatePost(ctx context.Context, id uuid.UUID, in PostInput) (*models.Post, error) {
	var out models.Post
	if err := c.sendPost(ctx, http.MethodPut, "/api/posts/"+id.String(), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus changes only a post's status.
func (c *Client) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PostStatus) (*models.Post, error) {
	var out models.Post
	err := c.doJSON(ctx, http.MethodPatch, "/api/posts/"+id.String()+"/status",
		map[string]string{"status": string(status)}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePost removes a post.
func (c *Client) DeletePost(ctx context.Context, id uuid.UUID) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/posts/"+id.String(), nil, nil)
}

// Upload stores an image on its own and returns the path to reference from
// a post's image field.
func (c *Client) Upload(ctx context.Context, img Image) (string, error) {
	ct, body, err := multipartBody(nil, &img)
	if err != nil {
		return "", err
	}
	var out struct {
		FilePath string `json:"filePath"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/upload", ct, body, &out); err != nil {
		return "", err
	}
	return out.FilePath, nil
}

func (c *Client) sendPost(ctx context.Context, method, path string, in PostInput, target any) error {
	if in.Image == nil {
		return c.doJSON(ctx, method, path, in.fields(), target)
	}
	ct, body, err := multipartBody(in.fields(), in.Image)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, ct, body, target)
}

func multipartBody(fields map[string]string, img *Image) (string, io.Reader, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", nil, fmt.Errorf("write form field: %w", err)
		}
	}
	if img != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, img.Filename))
		h.Set("Content-Type", img.ContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return "", nil, fmt.Errorf("create image part: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return "", nil, fmt.Errorf("write image part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", nil, fmt.Errorf("close form: %w", err)
	}
	return mw.FormDataContentType(), &buf, nil
}

// errorMessage extracts the user-facing text from err.
func errorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Error()
		if len(apiErr.Fields) > 0 {
			parts := make([]string, 0, len(apiErr.Fields))
			for _, f := range apiErr.Fields {
				parts = append(parts, f.Message)
			}
			msg += " " + strings.Join(parts, " ")
		}
		return msg
	}
	return err.Error()
}
