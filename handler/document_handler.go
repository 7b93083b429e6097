package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/neproger/docbot/service"
	"github.com/neproger/docbot/types"
)

type DocumentHandler struct {
	uploadDir string
	retrieval *service.RetrievalService
}

func NewDocumentHandler(uploadDir string, retrieval *service.RetrievalService) *DocumentHandler {
	return &DocumentHandler{
		uploadDir: uploadDir,
		retrieval: retrieval,
	}
}

// HandleList returns every ingested document's descriptor
func (h *DocumentHandler) HandleList() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		documents, err := h.retrieval.ListDocuments(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(types.DataResponse{
				Status:  false,
				Message: "Failed to list documents",
			})
			return
		}
		json.NewEncoder(w).Encode(types.DataResponse{
			Status: true,
			Data:   types.ListDocumentsResponse{Documents: documents},
		})
	})
}

// ServeDocument streams a stored PDF back to the client
func (h *DocumentHandler) ServeDocument() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		requestedName := r.URL.Query().Get("file")
		if requestedName == "" {
			http.Error(w, "File parameter is required", http.StatusBadRequest)
			return
		}
		if filepath.Ext(requestedName) != ".pdf" {
			http.Error(w, "Only PDF files are allowed", http.StatusBadRequest)
			return
		}

		// Uploads are stored with a timestamp suffix
		actualFile, err := h.findFileWithTimestamp(requestedName)
		if err != nil {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}

		filePath := filepath.Join(h.uploadDir, actualFile)

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s", requestedName))
		http.ServeFile(w, r, filePath)
	})
}

func (h *DocumentHandler) findFileWithTimestamp(requestedName string) (string, error) {
	files, err := os.ReadDir(h.uploadDir)
	if err != nil {
		return "", err
	}

	baseName := strings.TrimSuffix(requestedName, ".pdf")
	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, ".pdf") {
			continue
		}

		nameWithoutExt := strings.TrimSuffix(name, ".pdf")
		if nameWithoutExt == baseName {
			return name, nil
		}
		lastUnderscoreIdx := strings.LastIndex(nameWithoutExt, "_")
		if lastUnderscoreIdx == -1 {
			continue
		}

		timestampPart := nameWithoutExt[lastUnderscoreIdx+1:]
		fileBaseName := nameWithoutExt[:lastUnderscoreIdx]

		// Unix timestamps are 10 (seconds) or 13 (millis) digits
		if len(timestampPart) == 10 || len(timestampPart) == 13 {
			if _, err := strconv.ParseInt(timestampPart, 10, 64); err == nil {
				if fileBaseName == baseName {
					return name, nil
				}
			}
		}
	}
	return "", fmt.Errorf("file %s not found", requestedName)
}
