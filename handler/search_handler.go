package handler

import (
	"encoding/json"
	"net/http"

	"github.com/neproger/docbot/service"
	"github.com/neproger/docbot/types"
)

type SearchHandler struct {
	retrieval *service.RetrievalService
}

func NewSearchHandler(retrieval *service.RetrievalService) *SearchHandler {
	return &SearchHandler{
		retrieval: retrieval,
	}
}

func (h *SearchHandler) HandleSearch() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			h.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req types.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.sendError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Query == "" {
			h.sendError(w, "query is required", http.StatusBadRequest)
			return
		}

		groups, err := h.retrieval.Search(r.Context(), req.Query, req.Limit)
		if err != nil {
			h.sendError(w, "Search failed", http.StatusInternalServerError)
			return
		}
		h.sendSuccess(w, groups)
	})
}

func (h *SearchHandler) sendError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.DataResponse{
		Status:  false,
		Message: message,
	})
}

func (h *SearchHandler) sendSuccess(w http.ResponseWriter, groups []types.DocumentGroup) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(types.DataResponse{
		Status: true,
		Data:   types.SearchResponse{Groups: groups},
	})
}
