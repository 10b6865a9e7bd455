package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/collabhub/matching/internal/indexer"
	"github.com/collabhub/matching/internal/mapping"
	"github.com/collabhub/matching/internal/models"
	"github.com/collabhub/matching/internal/search"
	"github.com/collabhub/matching/internal/storage"
	"github.com/collabhub/matching/pkg/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	maxSyncBody = 64 << 20
	maxRunsPage = 200
)

// documentRequest is the write payload. ID and IsActive are optional: a
// missing id gets a fresh one and documents are active unless stated.
type documentRequest struct {
	ID string `json:"id,omitempty"`
	models.DocumentInput
	IsActive *bool `json:"isActive,omitempty"`
}

func (req documentRequest) document(id string) *models.SearchDocument {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &models.SearchDocument{
		ID:             id,
		SourceEntityID: strings.TrimSpace(req.SourceEntityID),
		Type:           req.Type,
		Title:          strings.TrimSpace(req.Title),
		Content:        strings.TrimSpace(req.Content),
		Tags:           models.NormalizeTags(req.Tags),
		Metadata:       req.Metadata,
		IsActive:       active,
		LastUpdated:    time.Now().UTC(),
	}
}

func (req documentRequest) idOrDefault() string {
	if id := strings.TrimSpace(req.ID); id != "" {
		return id
	}
	return models.DocumentID(req.Type, req.SourceEntityID)
}

type bulkIndexRequest struct {
	Documents []documentRequest `json:"documents"`
}

type bulkIndexResponse struct {
	*indexer.BulkReport
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type statusResponse struct {
	Documents  uint64          `json:"documents"`
	SyncRuns   int64           `json:"syncRuns"`
	DiskUsage  []storage.Usage `json:"diskUsage"`
	DiskBytes  int64           `json:"diskBytes"`
	BatchSize  int             `json:"batchSize"`
	IndexPath  string          `json:"indexPath"`
	LedgerPath string          `json:"ledgerPath,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var q models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.engine.Search(r.Context(), &q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var q models.SimilarQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.engine.SearchSimilar(r.Context(), &q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	var typ models.ItemType
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, err := models.ParseItemType(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		typ = t
	}
	limit := 0
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "max must be an integer")
			return
		}
		limit = n
	}
	suggestions, err := s.engine.GetSuggestions(r.Context(), r.URL.Query().Get("q"), typ, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"suggestions": suggestions})
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doc := req.document(req.idOrDefault())
	if err := s.indexer.IndexDocument(r.Context(), doc); err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": doc.ID, "status": "indexed"})
}

func (s *Server) handleBulkIndex(w http.ResponseWriter, r *http.Request) {
	var req bulkIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	docs := make([]*models.SearchDocument, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = d.document(d.idOrDefault())
	}
	report, err := s.indexer.IndexDocuments(r.Context(), docs)
	resp := bulkIndexResponse{BulkReport: report}
	status := http.StatusOK
	if err != nil {
		var gerr *indexer.Error
		switch {
		case indexer.IsCanceled(err):
			status = http.StatusServiceUnavailable
		case errors.Is(err, indexer.ErrBulkIndexFailed):
			status = http.StatusMultiStatus
		default:
			status = http.StatusInternalServerError
		}
		resp.Error = err.Error()
		if errors.As(err, &gerr) {
			resp.Code = string(gerr.Code)
		}
	}
	respondJSON(w, status, resp)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.indexer.UpdateDocument(r.Context(), req.document(id)); err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "updated"})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.indexer.RemoveDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.indexer.RemoveDocuments(r.Context(), req.IDs); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDocumentExists(w http.ResponseWriter, r *http.Request) {
	if s.indexer.DocumentExists(r.Context(), chi.URLParam(r, "id")) {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (s *Server) handleRemoveBySource(w http.ResponseWriter, r *http.Request) {
	typ, ok := itemTypeParam(w, r)
	if !ok {
		return
	}
	n, err := s.indexer.RemoveDocumentsBySourceEntity(r.Context(), chi.URLParam(r, "id"), typ)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	typ, ok := itemTypeParam(w, r)
	if !ok {
		return
	}
	n, err := s.indexer.ActivateDocumentsBySourceEntity(r.Context(), chi.URLParam(r, "id"), typ)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	typ, ok := itemTypeParam(w, r)
	if !ok {
		return
	}
	n, err := s.indexer.DeactivateDocumentsBySourceEntity(r.Context(), chi.URLParam(r, "id"), typ)
	if err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (s *Server) handleExisting(w http.ResponseWriter, r *http.Request) {
	typ, ok := itemTypeParam(w, r)
	if !ok {
		return
	}
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	existing, err := s.indexer.GetExistingSourceEntityIDs(r.Context(), req.IDs, typ)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ids := make([]string, 0, len(existing))
	for id := range existing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	respondJSON(w, http.StatusOK, map[string][]string{"existing": ids})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.seeder == nil {
		respondError(w, http.StatusNotImplemented, "sync is not enabled")
		return
	}
	typ, ok := itemTypeParam(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSyncBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entities, err := mapping.Decode(typ, body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := s.seeder.Sync(r.Context(), typ, entities, nil)
	if err != nil && run == nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	switch {
	case err == nil:
	case indexer.IsCanceled(err):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, run)
}

func (s *Server) handleSyncRuns(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		respondError(w, http.StatusNotImplemented, "sync ledger is not configured")
		return
	}
	var typ models.ItemType
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, err := models.ParseItemType(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		typ = t
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	limit = utils.Clamp(limit, 0, maxRunsPage)
	runs, err := s.ledger.ListRuns(r.Context(), typ, limit)
	if err != nil {
		s.logger.Error("list sync runs failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list sync runs")
		return
	}
	if runs == nil {
		runs = []*models.SyncRun{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.indexer.Refresh(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		BatchSize:  s.config.Index.BatchSize,
		IndexPath:  s.config.Storage.BleveIndexPath,
		LedgerPath: s.config.Storage.LedgerPath,
	}
	if s.index != nil {
		n, err := s.index.DocCount()
		if err != nil {
			s.logger.Error("doc count failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to read index status")
			return
		}
		resp.Documents = n
	}
	if s.ledger != nil {
		n, err := s.ledger.CountRuns(r.Context())
		if err != nil {
			s.logger.Error("count sync runs failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to read ledger status")
			return
		}
		resp.SyncRuns = n
	}
	usage, total, err := storage.DiskUsage(resp.IndexPath, resp.LedgerPath)
	if err != nil {
		s.logger.Warn("disk usage failed", zap.Error(err))
	}
	resp.DiskUsage, resp.DiskBytes = usage, total
	if resp.DiskUsage == nil {
		resp.DiskUsage = []storage.Usage{}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func itemTypeParam(w http.ResponseWriter, r *http.Request) (models.ItemType, bool) {
	typ, err := models.ParseItemType(chi.URLParam(r, "type"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return typ, true
}

// writeError maps gateway and query failures onto status codes: rejected
// input is 400, a caller that gave up is 503, any other typed failure is 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var gerr *indexer.Error
	code := ""
	if errors.As(err, &gerr) {
		code = string(gerr.Code)
	}
	switch {
	case indexer.IsCanceled(err):
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "request canceled", Code: "Canceled"})
	case errors.Is(err, search.ErrInvalidQuery):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "InvalidQuery"})
	case errors.Is(err, models.ErrInvalidDocument):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: code})
	default:
		s.logger.Error("request failed", zap.String("code", code), zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: code})
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
