package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/ports"
	"staffbook-backend/internal/storage"
)

// MediaService hands out upload slots and guards access to stored objects.
// An object belongs to the user who reserved it and is visible only inside
// that user's company.
type MediaService struct {
	Users   ports.UserStore
	Objects ports.MediaStore
	Files   storage.LocalStore
	Logger  *slog.Logger
	Clock   Clock
}

func (s MediaService) Reserve(ctx context.Context, userID int64) (*storage.Upload, error) {
	u, err := loadActor(ctx, s.Users, userID)
	if err != nil {
		return nil, err
	}
	up := s.Files.NewUpload()
	if err := s.Objects.CreateObject(ctx, domain.MediaObject{
		ID:         up.ID,
		CompanyID:  u.CompanyID,
		UploaderID: u.ID,
		CreatedAt:  s.Clock.now(),
	}); err != nil {
		return nil, err
	}
	return &up, nil
}

// Store writes the body of a reserved slot. Only the uploader may write, and
// only once.
func (s MediaService) Store(ctx context.Context, userID int64, id string, body io.Reader) (*domain.MediaObject, error) {
	u, err := loadActor(ctx, s.Users, userID)
	if err != nil {
		return nil, err
	}
	o, err := s.object(ctx, u, id)
	if err != nil {
		return nil, err
	}
	if o.UploaderID != u.ID {
		return nil, apperr.ErrForbidden
	}
	if o.StoredAt != nil {
		return nil, apperr.ErrObjectExists
	}
	n, err := s.Files.Put(id, body)
	if errors.Is(err, storage.ErrExists) {
		return nil, apperr.ErrObjectExists
	}
	if err != nil {
		return nil, err
	}
	now := s.Clock.now()
	if err := s.Objects.MarkStored(ctx, o.ID, n, now); err != nil {
		if errors.Is(err, ports.ErrStale) {
			return nil, apperr.ErrObjectExists
		}
		return nil, err
	}
	o.Size, o.StoredAt = n, &now
	s.log().Info("object stored", "object_id", o.ID, "company_id", o.CompanyID, "size", n)
	return o, nil
}

// Open returns a stored object of the caller's company.
func (s MediaService) Open(ctx context.Context, userID int64, id string) (*os.File, error) {
	u, err := loadActor(ctx, s.Users, userID)
	if err != nil {
		return nil, err
	}
	o, err := s.object(ctx, u, id)
	if err != nil {
		return nil, err
	}
	if o.StoredAt == nil {
		return nil, apperr.NotFound("object")
	}
	return s.Files.Open(o.ID)
}

// object loads id for u. Objects of other companies read as missing.
func (s MediaService) object(ctx context.Context, u *domain.User, id string) (*domain.MediaObject, error) {
	if !storage.IsObjectPath(storage.ObjectPath(id)) {
		return nil, storage.ErrInvalidObject
	}
	o, err := s.Objects.GetObject(ctx, id)
	if err != nil {
		return nil, notFound(err, "object")
	}
	if o.CompanyID != u.CompanyID {
		return nil, apperr.NotFound("object")
	}
	return o, nil
}

func (s MediaService) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
