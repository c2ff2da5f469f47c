package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// maxBodyBytes bounds request bodies; lesson texts are short.
const maxBodyBytes = 1 << 20

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

// ReadyResponse reports the state of each backend
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

// RetrieveRequest is the body of POST /api/v1/retrieve
type RetrieveRequest struct {
	Query   string                   `json:"query"`
	K       int                      `json:"k,omitempty"`
	Filters *domain.RetrievalFilters `json:"filters,omitempty"`
}

// ResolveRequest is the body of POST /api/v1/moderation/{id}/resolve.
// The actor is taken from the bearer token.
type ResolveRequest struct {
	Decision   string `json:"decision"`
	Notes      string `json:"notes,omitempty"`
	Text       string `json:"text,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	AgeBand    string `json:"age_band,omitempty"`
}

// FlagRequest is the body of POST /api/v1/moderation/flags
type FlagRequest struct {
	Concept     string `json:"concept"`
	Difficulty  string `json:"difficulty,omitempty"`
	AgeBand     string `json:"age_band,omitempty"`
	Description string `json:"description"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the task queue and every configured backend
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string)}

	check := func(name string, p Pinger) {
		if err := p.Ping(r.Context()); err != nil {
			resp.Status = "unavailable"
			resp.Checks[name] = err.Error()
			return
		}
		resp.Checks[name] = "ok"
	}

	if s.taskQueue != nil {
		check("task_queue", s.taskQueue)
	}
	for name, p := range s.readiness {
		if p != nil {
			check(name, p)
		}
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Retrieval and feedback

// handleRetrieve godoc
// @Summary      Retrieve lessons
// @Description  Returns the current documents nearest to the query, optionally filtered by slot fields
// @Tags         Retrieval
// @Accept       json
// @Produce      json
// @Param        request  body      RetrieveRequest  true  "Query"
// @Success      200      {object}  domain.RetrievalResult
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Failure      503      {object}  ErrorResponse  "Embedding provider unavailable"
// @Router       /retrieve [post]
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.retrievalService.Retrieve(r.Context(), req.Query, req.K, req.Filters)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleFeedback godoc
// @Summary      Submit learner feedback
// @Description  Assesses the comments for bias, applies the policy and reports the actions taken
// @Tags         Feedback
// @Accept       json
// @Produce      json
// @Param        request  body      domain.FeedbackSubmission  true  "Feedback"
// @Success      200      {object}  domain.FeedbackOutcome
// @Failure      400      {object}  ErrorResponse  "Invalid feedback"
// @Router       /feedback [post]
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var sub domain.FeedbackSubmission
	if !decodeJSON(w, r, &sub) {
		return
	}

	outcome, err := s.feedbackService.Submit(r.Context(), sub)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// Auth endpoints

// handleLogin godoc
// @Summary      Operator login
// @Description  Authenticate with email and password to receive a JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials"
// @Router       /auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.authService == nil {
		writeError(w, http.StatusServiceUnavailable, "authentication not configured")
		return
	}

	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GetAuthContext(r.Context()))
}

// Documents and corrections

// handleGetDocument godoc
// @Summary      Get document version
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.Document
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.correctionService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleGetCurrentDocument godoc
// @Summary      Get the current document of a slot
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        concept     query     string  true  "Concept"
// @Param        difficulty  query     string  true  "Difficulty"
// @Param        age_band    query     string  true  "Age band"
// @Success      200  {object}  domain.Document
// @Failure      404  {object}  ErrorResponse  "No current document"
// @Router       /documents/current [get]
func (s *Server) handleGetCurrentDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.correctionService.GetCurrent(r.Context(), slotFromQuery(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	docs, err := s.correctionService.Versions(r.Context(), slotFromQuery(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"versions": docs})
}

// handleApplyCorrection godoc
// @Summary      Replace the current document of a slot
// @Description  Writes a new version and supersedes the current one (admin only)
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.CorrectionRequest  true  "Correction"
// @Success      201      {object}  domain.Document
// @Failure      400      {object}  ErrorResponse  "Invalid correction"
// @Failure      404      {object}  ErrorResponse  "Slot has no current document"
// @Failure      503      {object}  ErrorResponse  "Embedding provider unavailable"
// @Router       /corrections [post]
func (s *Server) handleApplyCorrection(w http.ResponseWriter, r *http.Request) {
	var req domain.CorrectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "manual correction by " + GetAuthContext(r.Context()).Actor()
	}

	doc, err := s.correctionService.ApplyCorrection(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleCorpusStats(w http.ResponseWriter, r *http.Request) {
	if s.corpus == nil {
		writeError(w, http.StatusServiceUnavailable, "corpus not loaded")
		return
	}
	writeJSON(w, http.StatusOK, s.corpus.Stats())
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	if s.taskQueue == nil {
		writeError(w, http.StatusServiceUnavailable, "task queue not configured")
		return
	}

	stats, err := s.taskQueue.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Moderation

// handleEnqueueReview godoc
// @Summary      Add a review item
// @Tags         Moderation
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.EnqueueRequest  true  "Review item"
// @Success      201      {object}  map[string]string
// @Failure      400      {object}  ErrorResponse  "Invalid priority"
// @Router       /moderation [post]
func (s *Server) handleEnqueueReview(w http.ResponseWriter, r *http.Request) {
	var req domain.EnqueueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := s.moderationService.Enqueue(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"review_id": id})
}

// handleListPending godoc
// @Summary      List pending review items
// @Description  Ordered by priority, then by insertion
// @Tags         Moderation
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.ModerationItem
// @Router       /moderation/pending [get]
func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	items, err := s.moderationService.ListPending(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.ModerationItem{}
	}

	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := s.moderationService.History(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.ModerationItem{}
	}

	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleModerationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.moderationService.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleFeedbackInsights godoc
// @Summary      Feedback insights
// @Description  Average rating, bias rate, difficulty distribution and weak concepts over recent feedback
// @Tags         Feedback
// @Produce      json
// @Success      200  {object}  domain.FeedbackInsights
// @Router       /feedback/insights [get]
func (s *Server) handleFeedbackInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := s.feedbackService.Insights(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, insights)
}

func (s *Server) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	accuracy, err := s.moderationService.Accuracy(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{"accuracy": accuracy})
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	item, err := s.moderationService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// handleResolveReview godoc
// @Summary      Resolve a review item
// @Description  flag_bias and force_update apply a correction before the item is resolved
// @Tags         Moderation
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string          true  "Review ID"
// @Param        request  body      ResolveRequest  true  "Decision"
// @Success      200      {object}  domain.ModerationItem
// @Failure      400      {object}  ErrorResponse  "Invalid decision"
// @Failure      404      {object}  ErrorResponse  "Review not found"
// @Failure      409      {object}  ErrorResponse  "Already resolved"
// @Router       /moderation/{id}/resolve [post]
func (s *Server) handleResolveReview(w http.ResponseWriter, r *http.Request) {
	var body ResolveRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	item, err := s.moderationService.Resolve(r.Context(), domain.ResolveRequest{
		ReviewID:   r.PathValue("id"),
		Decision:   domain.Decision(body.Decision),
		Actor:      GetAuthContext(r.Context()).Actor(),
		Notes:      body.Notes,
		Text:       body.Text,
		Difficulty: body.Difficulty,
		AgeBand:    body.AgeBand,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleFlagBias(w http.ResponseWriter, r *http.Request) {
	var body FlagRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	id, err := s.moderationService.FlagBias(r.Context(), domain.ManualFlag{
		Concept:     body.Concept,
		Difficulty:  body.Difficulty,
		AgeBand:     body.AgeBand,
		Description: body.Description,
		Actor:       GetAuthContext(r.Context()).Actor(),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"review_id": id})
}

// Helper functions

func slotFromQuery(r *http.Request) domain.Slot {
	q := r.URL.Query()
	return domain.Slot{
		Concept:    q.Get("concept"),
		Difficulty: q.Get("difficulty"),
		AgeBand:    q.Get("age_band"),
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrAlreadySuperseded),
		errors.Is(err, domain.ErrCurrentDocumentExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidDecision):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case domain.IsTransient(err), errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
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
