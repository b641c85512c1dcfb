package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
	"github.com/Allerac/allerac-one-sub001/internal/extractors"
	"github.com/Allerac/allerac-one-sub001/internal/runtime"
)

// multipartMemory is the in-memory part of a parsed upload; larger files spill to disk
const multipartMemory = 8 << 20

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ReadyResponse reports dependency health and configured providers
type ReadyResponse struct {
	Status       string               `json:"status"`
	Database     string               `json:"database"`
	Queue        string               `json:"queue"`
	QueueStats   *driven.QueueStats   `json:"queue_stats,omitempty"`
	Capabilities runtime.Capabilities `json:"capabilities"`
}

// UploadResponse is returned when a document has been accepted for indexing
type UploadResponse struct {
	DocumentID string                `json:"document_id"`
	Status     domain.DocumentStatus `json:"status"`
}

// SearchRequest is the body of search and context requests
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`

	// SimilarityThreshold is omitted for the default; 0 is a valid threshold
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
}

// ContextResponse carries a prompt-ready context block
type ContextResponse struct {
	Context string `json:"context"`
}

// CorrectionRequest is the body of a correction
type CorrectionRequest struct {
	Content    string `json:"content"`
	Importance int    `json:"importance,omitempty"`
	Emotion    string `json:"emotion,omitempty"`
}

// ScheduleResponse reports whether background summarization was queued
type ScheduleResponse struct {
	Scheduled bool `json:"scheduled"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the database and task queue and reports configured AI providers
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{
		Status:   "ready",
		Database: pingStatus(r, s.db),
	}
	if s.taskQueue != nil {
		resp.Queue = pingStatus(r, s.taskQueue)
		if resp.Queue == "up" {
			if stats, err := s.taskQueue.Stats(r.Context()); err == nil {
				resp.QueueStats = stats
			} else {
				s.logger.Warn("queue stats unavailable", "error", err)
			}
		}
	} else {
		resp.Queue = pingStatus(r, nil)
	}
	if s.aiServices != nil {
		resp.Capabilities = s.aiServices.Capabilities()
	}

	status := http.StatusOK
	if resp.Database == "down" || resp.Queue == "down" {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func pingStatus(r *http.Request, p Pinger) string {
	if p == nil {
		return "not_configured"
	}
	if err := p.Ping(r.Context()); err != nil {
		return "down"
	}
	return "up"
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Document endpoints

// handleUploadDocument godoc
// @Summary      Upload document
// @Description  Creates the document, extracts its text and queues it for chunking and embedding.
// @Description  An unreadable file yields a failed document rather than an error.
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "Document (PDF, text, markdown, CSV, JSON)"
// @Success      202   {object}  UploadResponse
// @Failure      400   {object}  ErrorResponse  "Missing or unreadable file"
// @Failure      413   {object}  ErrorResponse  "File too large"
// @Failure      415   {object}  ErrorResponse  "Unsupported file type"
// @Router       /api/v1/documents [post]
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	upload := &domain.UploadFile{
		Filename: header.Filename,
		MimeType: extractors.ResolveMIMEType(header.Filename, header.Header.Get("Content-Type")),
		Data:     data,
	}

	id, err := s.docService.Upload(r.Context(), upload, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	status := domain.DocumentStatusProcessing
	if doc, err := s.docService.Get(r.Context(), id, userID(r)); err == nil {
		status = doc.Status
	}
	writeJSON(w, http.StatusAccepted, UploadResponse{DocumentID: id, Status: status})
}

// handleListDocuments godoc
// @Summary      List documents
// @Description  Lists the caller's documents, newest first
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Document
// @Router       /api/v1/documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.docService.List(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleGetDocument godoc
// @Summary      Get document
// @Description  Returns one document with its indexing status
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.Document
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Router       /api/v1/documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docService.Get(r.Context(), r.PathValue("id"), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument godoc
// @Summary      Delete document
// @Description  Deletes a document and all of its chunks
// @Tags         Documents
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      204  "No Content"
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Router       /api/v1/documents/{id} [delete]
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.docService.Delete(r.Context(), r.PathValue("id"), userID(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search endpoints

// handleSearch godoc
// @Summary      Semantic search
// @Description  Returns the caller's chunks most similar to the query
// @Tags         Search
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      SearchRequest  true  "Search query"
// @Success      200      {object}  domain.SearchResult
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Failure      502      {object}  ErrorResponse  "Embedding provider error"
// @Router       /api/v1/search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	hits, err := s.searchService.Search(r.Context(), req.Query, userID(r), req.options())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if hits == nil {
		hits = []*domain.SearchHit{}
	}

	writeJSON(w, http.StatusOK, domain.SearchResult{
		Query:      req.Query,
		Hits:       hits,
		TotalCount: len(hits),
		Took:       time.Since(start),
	})
}

// handleRelevantContext godoc
// @Summary      Relevant context
// @Description  Formats the best matching chunks as a prompt block for the chat model
// @Tags         Search
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      SearchRequest  true  "Search query"
// @Success      200      {object}  ContextResponse
// @Router       /api/v1/context [post]
func (s *Server) handleRelevantContext(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}

	text, err := s.searchService.GetRelevantContext(r.Context(), req.Query, userID(r), req.options())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ContextResponse{Context: text})
}

func decodeSearchRequest(w http.ResponseWriter, r *http.Request) (*SearchRequest, bool) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return nil, false
	}
	return &req, true
}

func (req *SearchRequest) options() domain.SearchOptions {
	return domain.SearchOptions{
		Limit:               req.Limit,
		SimilarityThreshold: req.SimilarityThreshold,
	}
}

// Memory endpoints

// handleSummaryEligibility godoc
// @Summary      Summary eligibility
// @Description  Reports whether a conversation should be summarized
// @Tags         Memory
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Conversation ID"
// @Success      200  {object}  domain.SummaryEligibility
// @Router       /api/v1/conversations/{id}/summary/eligibility [get]
func (s *Server) handleSummaryEligibility(w http.ResponseWriter, r *http.Request) {
	eligibility, err := s.memoryService.Eligibility(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eligibility)
}

// handleGenerateSummary godoc
// @Summary      Summarize conversation
// @Description  Summarizes the conversation now, or queues it when async=true
// @Tags         Memory
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Conversation ID"
// @Param        async  query     bool    false  "Queue summarization in the background"
// @Success      200    {object}  domain.ConversationSummary
// @Success      202    {object}  ScheduleResponse
// @Success      204    "Conversation has no messages"
// @Failure      404    {object}  ErrorResponse  "Conversation not found"
// @Failure      502    {object}  ErrorResponse  "Model provider error"
// @Router       /api/v1/conversations/{id}/summary [post]
func (s *Server) handleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		scheduled, err := s.memoryService.ScheduleSummary(r.Context(), conversationID, userID(r))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, ScheduleResponse{Scheduled: scheduled})
		return
	}

	summary, err := s.memoryService.GenerateSummary(r.Context(), conversationID, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if summary == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleRecordCorrection godoc
// @Summary      Record correction
// @Description  Appends a user correction to the conversation's summary
// @Tags         Memory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string             true  "Conversation ID"
// @Param        request  body      CorrectionRequest  true  "Correction"
// @Success      200      {object}  domain.ConversationSummary
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Router       /api/v1/conversations/{id}/corrections [post]
func (s *Server) handleRecordCorrection(w http.ResponseWriter, r *http.Request) {
	var req CorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := s.memoryService.RecordCorrection(r.Context(), r.PathValue("id"), userID(r), req.Content, req.Importance, req.Emotion)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleDeleteSummary godoc
// @Summary      Delete summary
// @Tags         Memory
// @Security     BearerAuth
// @Param        id   path  string  true  "Conversation ID"
// @Success      204  "No Content"
// @Failure      404  {object}  ErrorResponse  "Summary not found"
// @Router       /api/v1/conversations/{id}/summary [delete]
func (s *Server) handleDeleteSummary(w http.ResponseWriter, r *http.Request) {
	if err := s.memoryService.DeleteSummary(r.Context(), r.PathValue("id"), userID(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRecentSummaries godoc
// @Summary      Recent summaries
// @Description  Lists the caller's most recently updated summaries
// @Tags         Memory
// @Produce      json
// @Security     BearerAuth
// @Param        limit           query  int  false  "Maximum summaries (default 5)"
// @Param        min_importance  query  int  false  "Minimum importance (default 1)"
// @Success      200  {array}   domain.ConversationSummary
// @Router       /api/v1/memory/summaries [get]
func (s *Server) handleRecentSummaries(w http.ResponseWriter, r *http.Request) {
	limit, minImportance, ok := memoryQuery(w, r)
	if !ok {
		return
	}

	summaries, err := s.memoryService.GetRecentSummaries(r.Context(), userID(r), limit, minImportance)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []*domain.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleMemoryContext godoc
// @Summary      Memory context
// @Description  Formats recent summaries as a prompt block for the chat model
// @Tags         Memory
// @Produce      json
// @Security     BearerAuth
// @Param        limit           query  int  false  "Maximum summaries (default 5)"
// @Param        min_importance  query  int  false  "Minimum importance (default 1)"
// @Success      200  {object}  ContextResponse
// @Router       /api/v1/memory/context [get]
func (s *Server) handleMemoryContext(w http.ResponseWriter, r *http.Request) {
	limit, minImportance, ok := memoryQuery(w, r)
	if !ok {
		return
	}

	summaries, err := s.memoryService.GetRecentSummaries(r.Context(), userID(r), limit, minImportance)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ContextResponse{Context: s.memoryService.FormatMemoryContext(summaries)})
}

func memoryQuery(w http.ResponseWriter, r *http.Request) (limit, minImportance int, ok bool) {
	q := r.URL.Query()
	var err error
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return 0, 0, false
		}
	}
	if v := q.Get("min_importance"); v != "" {
		if minImportance, err = strconv.Atoi(v); err != nil || minImportance < 0 {
			writeError(w, http.StatusBadRequest, "min_importance must be a non-negative integer")
			return 0, 0, false
		}
	}
	return limit, minImportance, true
}

// Helper functions

// errorStatus maps domain errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFoundOrForbidden),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProvider):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrPersistence),
		errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	if status == http.StatusInternalServerError {
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
