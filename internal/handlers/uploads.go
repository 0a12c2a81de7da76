package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	errUnsupportedFile = errors.New("only png, jpg, jpeg and gif files are allowed")
	errFileTooLarge    = errors.New("file is too large")
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

func allowedFile(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// parseMultipart limits the request body and parses a multipart form.
func (h *Handlers) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	err := r.ParseMultipartForm(h.maxUpload)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errFileTooLarge
	}
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// saveUpload stores the file posted in field and returns its stored name.
// An empty name and nil error mean nothing was posted.
func (h *Handlers) saveUpload(r *http.Request, field, prefix string) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	if header.Filename == "" {
		return "", nil
	}
	if !allowedFile(header.Filename) {
		return "", errUnsupportedFile
	}
	name := prefix + uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	if err := h.writeUpload(name, file); err != nil {
		return "", err
	}
	return name, nil
}

// saveDataURL stores a base64 data URL captured by the browser camera.
func (h *Handlers) saveDataURL(value, prefix string) (string, error) {
	_, data, ok := strings.Cut(value, ",")
	if !ok {
		return "", fmt.Errorf("camera photo: %w", errUnsupportedFile)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode camera photo: %w", err)
	}
	if int64(len(raw)) > h.maxUpload {
		return "", errFileTooLarge
	}
	name := prefix + uuid.NewString() + ".png"
	if err := h.writeUpload(name, bytes.NewReader(raw)); err != nil {
		return "", err
	}
	return name, nil
}

func (h *Handlers) writeUpload(name string, src io.Reader) error {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	dst, err := os.Create(filepath.Join(h.uploadDir, name))
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("write upload: %w", err)
	}
	return dst.Close()
}

// uploadPath returns the on-disk path of a stored upload, or "" for an empty name.
func (h *Handlers) uploadPath(name string) string {
	if name == "" {
		return ""
	}
	return filepath.Join(h.uploadDir, filepath.Base(name))
}

// Upload serves a stored photo, logo or payment proof.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || !allowedFile(name) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.uploadDir, name))
}
