package filestorage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/yigit/coursecred/internal/pkg/logger"
)

// LocalStorage handles saving generated documents to the local filesystem.
type LocalStorage struct {
	basePath string // The root directory where files will be stored
}

// NewLocalStorage creates a new LocalStorage instance.
// basePath is the required directory path on the server.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		logger.Error().Err(err).Str("path", basePath).Msg("Failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	logger.Info().Str("path", basePath).Msg("Local storage directory ensured")

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// SaveBytes writes data under subPath with a unique name ending in ext and
// returns the storage-relative path of the new file.
func (ls *LocalStorage) SaveBytes(subPath, ext string, data []byte) (string, error) {
	fullDirPath := ls.basePath
	if subPath != "" {
		fullDirPath = filepath.Join(ls.basePath, subPath)
		if err := os.MkdirAll(fullDirPath, 0o755); err != nil {
			logger.Error().Err(err).Str("path", fullDirPath).Msg("Failed to create subdirectory")
			return "", fmt.Errorf("failed to create subdirectory: %w", err)
		}
	}

	uniqueFilename := uuid.New().String() + ext
	dstPath := filepath.Join(fullDirPath, uniqueFilename)

	// Write to a temp file first so readers never see a partial document.
	tmpPath := dstPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		logger.Error().Err(err).Str("path", tmpPath).Msg("Failed to write file")
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize file: %w", err)
	}

	relPath := filepath.ToSlash(filepath.Join(subPath, uniqueFilename))
	logger.Info().Str("saved_as", relPath).Int("bytes", len(data)).Msg("File saved successfully")
	return relPath, nil
}

// FullPath resolves a storage-relative path to a filesystem path. Paths that
// would escape the storage root resolve to an empty string.
func (ls *LocalStorage) FullPath(relPath string) string {
	if relPath == "" {
		return ""
	}
	clean := filepath.Clean("/" + filepath.FromSlash(relPath))
	full := filepath.Join(ls.basePath, clean)
	base := filepath.Clean(ls.basePath)
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return ""
	}
	return full
}

// Exists reports whether relPath refers to a stored file.
func (ls *LocalStorage) Exists(relPath string) bool {
	full := ls.FullPath(relPath)
	if full == "" {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// DeleteFile removes a stored file. Missing files are not an error.
func (ls *LocalStorage) DeleteFile(relPath string) error {
	full := ls.FullPath(relPath)
	if full == "" {
		return fmt.Errorf("invalid file path: %s", relPath)
	}

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("path", full).Msg("File to delete does not exist")
			return nil
		}
		logger.Error().Err(err).Str("path", full).Msg("Failed to delete file")
		return fmt.Errorf("failed to delete file: %w", err)
	}

	logger.Info().Str("path", full).Msg("File deleted successfully")
	return nil
}
