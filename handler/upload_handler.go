package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/neproger/docbot/service"
	"github.com/neproger/docbot/types"
)

type UploadHandler struct {
	fileService *service.FileService
}

func NewUploadHandler(fileService *service.FileService) *UploadHandler {
	return &UploadHandler{
		fileService: fileService,
	}
}

func (h *UploadHandler) UploadDocumentHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodPost {
			h.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		const maxSize = 20 << 20
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			h.sendError(w, "Invalid file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		var req types.UploadRequest
		if metadata := r.FormValue("metadata"); metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &req); err != nil {
				h.sendError(w, "Invalid metadata", http.StatusBadRequest)
				return
			}
		}

		result, err := h.fileService.UploadFile(r.Context(), req, header)
		if err != nil {
			// Partial ingestion keeps what was written; the client re-uploads
			// to fill the gaps.
			var ingErr *types.IngestionError
			if errors.As(err, &ingErr) {
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(types.DataResponse{
					Status:  false,
					Message: fmt.Sprintf("Document partially ingested: %d page(s) failed. Upload again to retry.", len(ingErr.PageErrors)),
					Data: types.UploadResponse{
						OriginalName: header.Filename,
						Ingestion:    result,
					},
				})
				return
			}
			h.sendError(w, "Failed to ingest document", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(types.DataResponse{
			Status: true,
			Data: types.UploadResponse{
				OriginalName: header.Filename,
				Ingestion:    result,
			},
		})
	})
}

func (h *UploadHandler) sendError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.DataResponse{
		Status:  false,
		Message: message,
	})
}
