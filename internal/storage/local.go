// Package storage keeps uploaded media on local disk under stable object
// paths of the form /objects/uploads/<id>.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const objectPrefix = "/objects/uploads/"

var (
	ErrInvalidObject = errors.New("invalid object id")
	ErrNotFound      = errors.New("object not found")
	ErrTooLarge      = errors.New("object exceeds size limit")
	ErrExists        = errors.New("object already uploaded")
)

// Upload is a slot the client writes an object into.
type Upload struct {
	ID         string `json:"id"`
	UploadURL  string `json:"uploadUrl"`
	ObjectPath string `json:"objectPath"`
}

type LocalStore struct {
	Dir      string
	BaseURL  string
	MaxBytes int64
}

// ObjectPath is the public path of object id.
func ObjectPath(id string) string {
	return objectPrefix + id
}

// NewUpload allocates a fresh object id.
func (s LocalStore) NewUpload() Upload {
	id := uuid.NewString()
	path := ObjectPath(id)
	return Upload{
		ID:         id,
		UploadURL:  strings.TrimRight(s.BaseURL, "/") + path,
		ObjectPath: path,
	}
}

// Put writes the object body once. A second write for the same id fails
// with ErrExists and leaves the stored bytes untouched.
func (s LocalStore) Put(id string, body io.Reader) (int64, error) {
	p, err := s.path(id)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return 0, fmt.Errorf("create upload dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := body
	if s.MaxBytes > 0 {
		src = io.LimitReader(body, s.MaxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write object: %w", err)
	}
	if s.MaxBytes > 0 && n > s.MaxBytes {
		return 0, ErrTooLarge
	}
	if err := os.Link(tmp.Name(), p); err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, ErrExists
		}
		return 0, fmt.Errorf("store object: %w", err)
	}
	return n, nil
}

// Open returns the stored object for reading.
func (s LocalStore) Open(id string) (*os.File, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// IsObjectPath reports whether path names an object this store issued.
func IsObjectPath(path string) bool {
	id, ok := strings.CutPrefix(path, objectPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func (s LocalStore) path(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidObject
	}
	return filepath.Join(s.Dir, parsed.String()), nil
}
