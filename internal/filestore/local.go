package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const TagLocal = "local"

// LocalStore keeps uploads on the local filesystem under a base directory.
type LocalStore struct {
	baseDir string
	logger  *slog.Logger
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(baseDir string, logger *slog.Logger) (*LocalStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("local store base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir, logger: logger}, nil
}

func (s *LocalStore) Tag() string {
	return TagLocal
}

// Store copies the source file into the base directory under a generated
// relative path, hashing the bytes as they stream through.
func (s *LocalStore) Store(ctx context.Context, sourcePath, originalFilename string) (Descriptor, error) {
	mtype, err := mimetype.DetectFile(sourcePath)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to detect mime type: %w", err)
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	relPath := generatePath(originalFilename)
	destPath := filepath.Join(s.baseDir, relPath)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return Descriptor{}, fmt.Errorf("failed to create destination directory: %w", err)
	}

	dest, err := os.Create(destPath)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dest.Close()

	hasher := sha256.New()
	size, err := io.Copy(dest, io.TeeReader(src, hasher))
	if err != nil {
		os.Remove(destPath)
		return Descriptor{}, fmt.Errorf("failed to copy file: %w", err)
	}

	desc := Descriptor{
		Storage:          TagLocal,
		Path:             relPath,
		OriginalFilename: originalFilename,
		MimeType:         mtype.String(),
		SizeBytes:        size,
		ChecksumSHA256:   hex.EncodeToString(hasher.Sum(nil)),
	}

	s.logger.Debug("File stored locally",
		slog.String("path", relPath),
		slog.Int64("size_bytes", size),
		slog.String("mime_type", desc.MimeType),
	)

	return desc, nil
}

// Delete removes a stored file. A file already gone is not an error.
func (s *LocalStore) Delete(ctx context.Context, storage, path string) error {
	if storage != TagLocal {
		return fmt.Errorf("local store cannot delete from backend %q", storage)
	}

	if err := os.Remove(filepath.Join(s.baseDir, path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	s.logger.Debug("File deleted from local store",
		slog.String("path", path),
	)
	return nil
}

// generatePath builds a two-level relative path from a fresh UUID, keeping
// directory fan-out bounded.
func generatePath(originalFilename string) string {
	id := uuid.New().String()
	return filepath.Join("imports", id[:2], id+filepath.Ext(originalFilename))
}
