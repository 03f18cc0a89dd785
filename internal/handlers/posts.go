// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"postdesk/internal/apperr"
	"postdesk/internal/authz"
	"postdesk/internal/cache"
	"postdesk/internal/models"
	"postdesk/internal/posts"
	"postdesk/internal/storage"
)

// Searcher answers full-text post queries.
type Searcher interface {
	Search(ctx context.Context, q string, limit int) []models.Post
}

// ListingCache stores rendered public listings.
type ListingCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
}

// Posts groups the post endpoints.
type Posts struct {
	svc    *posts.Service
	search Searcher
	cache  ListingCache
}

// NewPosts creates the post handlers. search and cache may be nil.
func NewPosts(svc *posts.Service, search Searcher, listings ListingCache) *Posts {
	return &Posts{svc: svc, search: search, cache: listings}
}

// List handles GET /posts.
func (h *Posts) List(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	caller := authz.FromContext(r.Context())
	cacheable := h.cache != nil && (f.AuthorID == "" || f.AuthorID != authz.UserID(caller))
	key := cache.ListKey(f)
	if cacheable {
		if body, ok := h.cache.Get(r.Context(), key); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.Write(body)
			return
		}
	}

	page, err := h.svc.List(r.Context(), caller, f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if cacheable {
		if body, err := json.Marshal(page); err == nil {
			h.cache.Set(r.Context(), key, append(body, '\n'))
		}
	}
	writeJSON(w, http.StatusOK, page)
}

func listFilter(r *http.Request) (models.PostFilter, error) {
	q := r.URL.Query()
	var fields apperr.FieldList
	f := models.PostFilter{
		Tag:      strings.ToLower(strings.TrimSpace(q.Get("tag"))),
		AuthorID: strings.TrimSpace(q.Get("authorId")),
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields.Add("page", "Page must be a positive integer.")
		}
		f.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields.Add("limit", "Limit must be a positive integer.")
		}
		f.Limit = n
	}
	if v := q.Get("category"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			fields.Add("category", "Invalid category ID.")
		} else {
			f.CategoryID = &id
		}
	}
	return f, fields.Err()
}

// Search handles GET /posts/search.
func (h *Posts) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results := []models.Post{}
	if h.search != nil && q != "" {
		results = h.search.Search(r.Context(), q, limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "posts": results})
}

// Get handles GET /posts/{id}; the parameter may also be a slug.
func (h *Posts) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.svc.Get(r.Context(), authz.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Create handles POST /posts with a multipart form or a JSON body.
func (h *Posts) Create(w http.ResponseWriter, r *http.Request) {
	form, err := readPostForm(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer form.close()

	in := posts.CreateInput{
		Title:      deref(form.Title),
		Content:    deref(form.Content),
		CategoryID: deref(form.Category),
		Status:     deref(form.Status),
		Author:     deref(form.Author),
		Tags:       form.Tags,
		Image:      form.upload,
		ImagePath:  deref(form.Image),
	}
	post, err := h.svc.Create(r.Context(), authz.FromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// Update handles PUT /posts/{id}. Absent fields are left unchanged.
func (h *Posts) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "Post")
	if err != nil {
		writeError(w, r, err)
		return
	}
	form, err := readPostForm(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer form.close()

	in := posts.UpdateInput{
		Title:      form.Title,
		Content:    form.Content,
		CategoryID: form.Category,
		Status:     form.Status,
		Author:     form.Author,
		Tags:       form.Tags,
		Image:      form.upload,
		ImagePath:  deref(form.Image),
	}
	post, err := h.svc.Update(r.Context(), authz.FromContext(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// UpdateStatus handles PATCH /posts/{id}/status.
func (h *Posts) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "Post")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	post, err := h.svc.UpdateStatus(r.Context(), authz.FromContext(r.Context()), id, body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/{id}.
func (h *Posts) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "Post")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), authz.FromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageBody{Message: "Post deleted successfully."})
}

// postForm is the decoded body of a create or update request. Nil fields
// were absent from the request.
type postForm struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Category *string `json:"category"`
	Status   *string `json:"status"`
	Author   *string `json:"author"`
	Tags     *string `json:"tags"`
	Image    *string `json:"image"` // path of a previously uploaded image

	upload *storage.Upload
	file   multipart.File
	mf     *multipart.Form
}

func (f *postForm) close() {
	if f.file != nil {
		f.file.Close()
	}
	if f.mf != nil {
		f.mf.RemoveAll()
	}
}

// readPostForm decodes a multipart form (with an optional "image" file) or
// a JSON body, depending on the request's content type.
func readPostForm(w http.ResponseWriter, r *http.Request) (*postForm, error) {
	form := &postForm{}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := decodeJSON(w, r, form); err != nil {
			return nil, err
		}
	} else {
		if err := parseMultipart(w, r); err != nil {
			return nil, err
		}
		form.mf = r.MultipartForm
		value := func(key string) *string {
			if vs, ok := r.MultipartForm.Value[key]; ok && len(vs) > 0 {
				v := vs[0]
				return &v
			}
			return nil
		}
		form.Title = value("title")
		form.Content = value("content")
		form.Category = value("category")
		form.Status = value("status")
		form.Author = value("author")
		form.Tags = value("tags")
		form.Image = value("image")

		upload, file, err := formUpload(r, "image")
		if err != nil {
			form.close()
			return nil, err
		}
		form.upload, form.file = upload, file
	}

	var fields apperr.FieldList
	checkPostLengths(&fields, form.Title, form.Content)
	if err := fields.Err(); err != nil {
		form.close()
		return nil, err
	}
	return form, nil
}

// parseMultipart reads a multipart body capped slightly above the upload limit.
func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(storage.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.InvalidArgument("image", "File too large. Maximum size is 5 MB.")
		}
		return apperr.InvalidArgument("body", "Malformed form data.")
	}
	return nil
}

// formUpload returns the file in field, or nil if none was sent.
func formUpload(r *http.Request, field string) (*storage.Upload, multipart.File, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apperr.InvalidArgument(field, "Could not read the uploaded file.")
	}
	return &storage.Upload{
		Field:       field,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, file, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
