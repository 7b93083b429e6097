package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/neproger/docbot/types"
	"github.com/neproger/docbot/utils"
)

// FileService takes a document file, keeps a copy under the upload directory
// and drives the ingestion pipeline with its extracted text.
type FileService struct {
	uploadDir  string
	ingest     *IngestService
	pdfService *PDFService
}

func NewFileService(uploadDir string, ingest *IngestService, pdfService *PDFService) *FileService {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		panic(err)
	}
	return &FileService{
		uploadDir:  uploadDir,
		ingest:     ingest,
		pdfService: pdfService,
	}
}

// IngestFile ingests a file already on disk. The original path is used as the
// document's source locator; title defaults to the file name.
func (s *FileService) IngestFile(ctx context.Context, path, title string) (*types.IngestionResult, error) {
	if title == "" {
		title = filepath.Base(path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md":
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return s.ingest.IngestText(ctx, path, title, string(body))
	case ".pdf":
		pages, err := s.pdfService.ExtractPages(path)
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", path, err)
		}
		return s.ingest.IngestPages(ctx, path, title, pages)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

// UploadFile stores an uploaded file with a timestamped name and ingests the
// stored copy
func (s *FileService) UploadFile(ctx context.Context, req types.UploadRequest, file *multipart.FileHeader) (*types.IngestionResult, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" && ext != ".txt" && ext != ".md" {
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(s.uploadDir, "upload-*"+ext)
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	stored, err := utils.CopyFileWithName(tmpPath, s.uploadDir, sanitizeFilename(file.Filename))
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = file.Filename
	}
	return s.IngestFile(ctx, stored, title)
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '_'
	}, name)
}
