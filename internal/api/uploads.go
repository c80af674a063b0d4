package api

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/talentflow/internal/storage"
)

const maxUploadBytes = 50 << 20 // 50 MB

// UploadHandler accepts and serves files attached to file-upload answers.
type UploadHandler struct {
	files storage.Provider
}

// NewUploadHandler creates a handler storing files in files.
func NewUploadHandler(files storage.Provider) *UploadHandler {
	return &UploadHandler{files: files}
}

// safeName validates that name is a plain file name with no path separators
// or traversal.
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsAny(cleaned, `/\`) {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return cleaned, nil
}

// storedName prefixes a sanitized client file name with a random id so
// uploads never overwrite each other.
func storedName(clientName string) string {
	base := filepath.Base(strings.ReplaceAll(clientName, `\`, "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.TrimLeft(b.String(), ".")
	if name == "" {
		name = "file"
	}
	return uuid.NewString() + "-" + name
}

// ServeFile handles GET /api/uploads/{name}.
//
//	@Summary		Download an uploaded file
//	@Tags			uploads
//	@Produce		octet-stream
//	@Param			name	path	string	true	"Stored file name"
//	@Success		200
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Router			/uploads/{name} [get]
func (h *UploadHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name, err := safeName(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	meta, err := h.files.Stat(name)
	if err != nil {
		writeError(w, "serve upload", err)
		return
	}
	data, err := h.files.Read(name)
	if err != nil {
		writeError(w, "serve upload", err)
		return
	}
	w.Header().Set("ETag", `"`+meta.Checksum+`"`)
	http.ServeContent(w, r, name, meta.UpdatedAt, bytes.NewReader(data))
}

// Upload handles POST /api/uploads (multipart/form-data, field "file").
//
//	@Summary		Upload a file for a file-upload answer
//	@Tags			uploads
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"File to upload"
//	@Success		201		{object}	UploadResponse
//	@Failure		400		{object}	errResponse
//	@Router			/uploads [post]
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name := storedName(header.Filename)
	meta, err := h.files.WriteFrom(name, file)
	if err != nil {
		writeError(w, "upload", err)
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Name:     name,
		Size:     meta.Size,
		Checksum: meta.Checksum,
		URL:      "/api/uploads/" + name,
	})
}

// ListUploads handles GET /api/uploads.
//
//	@Summary		List uploaded files
//	@Tags			uploads
//	@Produce		json
//	@Success		200	{array}	UploadResponse
//	@Router			/uploads [get]
func (h *UploadHandler) ListUploads(w http.ResponseWriter, _ *http.Request) {
	files, err := h.files.List("", "")
	if err != nil {
		writeError(w, "list uploads", err)
		return
	}
	out := make([]UploadResponse, 0, len(files))
	for _, f := range files {
		out = append(out, UploadResponse{
			Name:     f.Path,
			Size:     f.Size,
			Checksum: f.Checksum,
			URL:      "/api/uploads/" + f.Path,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteFile handles DELETE /api/uploads/{name}.
//
//	@Summary		Delete an uploaded file
//	@Tags			uploads
//	@Param			name	path	string	true	"Stored file name"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Router			/uploads/{name} [delete]
func (h *UploadHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	name, err := safeName(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.files.Delete(name); err != nil {
		writeError(w, "delete upload", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
