package services

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alfredoptarigan/resume-screener/internal/logger"
)

type StorageService interface {
	// NewWorkspace creates an empty directory that holds the files of one request.
	NewWorkspace(prefix string) (string, error)
	// SaveFile stores an upload under dir, keeping its base name.
	SaveFile(file *multipart.FileHeader, dir string) (string, error)
	// ExtractPDFs unpacks every .pdf entry of a zip archive into dir.
	ExtractPDFs(zipPath, dir string) ([]string, error)
	RemoveWorkspace(dir string) error
	EnsureUploadDir() error
}

type storageService struct {
	uploadPath  string
	maxFileSize int64
	log         *zap.Logger
}

func NewStorageService(uploadPath string, maxFileSize int64, log *zap.Logger) StorageService {
	return &storageService{
		uploadPath:  uploadPath,
		maxFileSize: maxFileSize,
		log:         logger.OrNop(log),
	}
}

func (s *storageService) EnsureUploadDir() error {
	if err := os.MkdirAll(s.uploadPath, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	return nil
}

func (s *storageService) NewWorkspace(prefix string) (string, error) {
	dir := filepath.Join(s.uploadPath, fmt.Sprintf("%s_%s", prefix, uuid.New().String()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	return dir, nil
}

func (s *storageService) SaveFile(file *multipart.FileHeader, dir string) (string, error) {
	name := filepath.Base(filepath.Clean(file.Filename))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("invalid file name: %q", file.Filename)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	filePath := filepath.Join(dir, name)

	// Open source file
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	if err := s.writeFile(filePath, src); err != nil {
		return "", err
	}

	return filePath, nil
}

func (s *storageService) ExtractPDFs(zipPath, dir string) ([]string, error) {
	// Unsafe entry names are filtered below.
	r, err := zip.OpenReader(zipPath)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && r != nil) {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer r.Close()

	var paths []string
	for _, entry := range r.File {
		if entry.FileInfo().IsDir() || strings.ToLower(filepath.Ext(entry.Name)) != ".pdf" {
			continue
		}

		rel, ok := safeEntryPath(entry.Name)
		if !ok {
			s.log.Warn("skipping zip entry outside the archive root", zap.String(logger.FieldFile, entry.Name))
			continue
		}

		dest := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", entry.Name, err)
		}

		src, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open zip entry %s: %w", entry.Name, err)
		}
		err = s.writeFile(dest, src)
		src.Close()
		if err != nil {
			return nil, err
		}

		paths = append(paths, dest)
	}

	return paths, nil
}

// safeEntryPath turns a zip entry name into a relative path that stays
// inside the extraction directory.
func safeEntryPath(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	rel := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func (s *storageService) writeFile(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if s.maxFileSize > 0 {
		src = io.LimitReader(src, s.maxFileSize+1)
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	if s.maxFileSize > 0 && n > s.maxFileSize {
		return fmt.Errorf("file %s too large. Max size: %d bytes", filepath.Base(path), s.maxFileSize)
	}
	return nil
}

func (s *storageService) RemoveWorkspace(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove workspace: %w", err)
	}
	return nil
}
