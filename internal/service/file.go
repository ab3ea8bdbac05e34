package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
	"github.com/spado/songcontest/internal/storage"
)

// Upload describes a validated file ready to be stored.
type Upload struct {
	Body         io.Reader
	OriginalName string
	ContentType  string
	Size         int64
}

type FileService struct {
	fileRepo repository.FileRepository
	storage  storage.Storage
}

func NewFileService(fileRepo repository.FileRepository, storage storage.Storage) *FileService {
	return &FileService{
		fileRepo: fileRepo,
		storage:  storage,
	}
}

// Upload stores the object and creates its database record. Validation is
// the caller's job.
func (s *FileService) Upload(ctx context.Context, userID, ownerType, ownerID, fileType string, upload Upload) (*model.File, error) {
	ext := strings.ToLower(filepath.Ext(upload.OriginalName))
	filename := uuid.New().String() + ext
	storagePath := path.Join("songs", fileType, filename)

	err := s.storage.Save(ctx, storagePath, upload.Body, upload.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	file := &model.File{
		ID:           uuid.New().String(),
		UserID:       userID,
		OwnerType:    ownerType,
		OwnerID:      ownerID,
		Type:         fileType,
		Filename:     filename,
		OriginalName: filepath.Base(upload.OriginalName),
		MimeType:     upload.ContentType,
		Size:         upload.Size,
		StoragePath:  storagePath,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.fileRepo.Create(ctx, file)
	if err != nil {
		delErr := s.storage.Delete(ctx, storagePath)
		if delErr != nil {
			slog.Error("failed to delete file from storage during cleanup", "error", delErr, "path", storagePath)
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	return file, nil
}

// OwnerFile returns the newest file of a type attached to an owner.
func (s *FileService) OwnerFile(ctx context.Context, ownerType, ownerID, fileType string) (*model.File, error) {
	return s.fileRepo.FileByType(ctx, ownerType, ownerID, fileType)
}

// URL returns a presigned download URL, or "" when signing fails.
func (s *FileService) URL(ctx context.Context, file *model.File) string {
	if file == nil {
		return ""
	}

	url, err := s.storage.URL(ctx, file.StoragePath)
	if err != nil {
		slog.Warn("failed to sign file URL", "error", err, "file_id", file.ID)
		return ""
	}
	return url
}

// DeleteOwnerFiles removes every file attached to an owner. Storage deletes
// are best effort; a leftover object is preferable to a stuck record.
func (s *FileService) DeleteOwnerFiles(ctx context.Context, ownerType, ownerID string) error {
	files, err := s.fileRepo.Files(ctx, ownerType, ownerID)
	if err != nil {
		return fmt.Errorf("failed to get files: %w", err)
	}

	for _, file := range files {
		delErr := s.storage.Delete(ctx, file.StoragePath)
		if delErr != nil {
			slog.Warn("failed to delete file from storage", "error", delErr, "path", file.StoragePath)
		}

		err = s.fileRepo.Delete(ctx, file.ID)
		if err != nil {
			return fmt.Errorf("failed to delete file record: %w", err)
		}
	}

	return nil
}

// DeleteUserFilesFromStorage removes the objects of all files a user
// uploaded. The records go with the user row through ON DELETE CASCADE.
func (s *FileService) DeleteUserFilesFromStorage(ctx context.Context, userID string) error {
	files, err := s.fileRepo.UserFiles(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user files: %w", err)
	}

	for _, file := range files {
		err = s.storage.Delete(ctx, file.StoragePath)
		if err != nil {
			slog.Warn("failed to delete file from storage", "storage_path", file.StoragePath, "error", err)
		}
	}

	return nil
}
