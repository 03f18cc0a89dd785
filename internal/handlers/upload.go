package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"postdesk/internal/apperr"
	"postdesk/internal/storage"
)

// Upload handles standalone image uploads. The returned path can be used
// as a post's "image" field afterwards.
type Upload struct {
	assets storage.AssetStore
}

// NewUpload creates the upload handler.
func NewUpload(assets storage.AssetStore) *Upload {
	return &Upload{assets: assets}
}

// Create handles POST /upload.
func (h *Upload) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	upload, file, err := formUpload(r, "image")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if upload == nil {
		writeError(w, r, apperr.InvalidArgument("image", "Please upload a file."))
		return
	}
	defer file.Close()

	if err := storage.Validate(*upload); err != nil {
		writeError(w, r, apperr.InvalidArgument("image", "Images only: JPEG or PNG, at most 5 MB."))
		return
	}

	path, err := h.assets.Save(r.Context(), *upload)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			writeError(w, r, apperr.InvalidArgument("image", "Images only: JPEG or PNG, at most 5 MB."))
			return
		}
		writeError(w, r, apperr.Internal("Failed to store file.", err))
		return
	}
	slog.Info("image uploaded", "path", path, "size", upload.Size)
	writeJSON(w, http.StatusCreated, map[string]string{"filePath": path})
}
