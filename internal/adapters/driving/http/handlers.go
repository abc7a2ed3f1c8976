package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error  string            `json:"error" example:"invalid request body"`
	Fields map[string]string `json:"fields,omitempty"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// QuestionRequest is the body of the answering endpoints
// @Description A question for the answering engine
type QuestionRequest struct {
	Question string `json:"question" validate:"required,max=4000" example:"What is a test case?"`
}

// HistoryResponse is a session's conversation history
type HistoryResponse struct {
	SessionID string                `json:"session_id"`
	Messages  []*domain.ChatMessage `json:"messages"`
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
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Checks the database connection and the AI services
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ready", "database": "ok"}
	code := http.StatusOK

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if s.ai != nil {
		for name, state := range s.ai.Health(r.Context()) {
			status[name] = state
			if state != "ok" {
				code = http.StatusServiceUnavailable
			}
		}
	}
	if code != http.StatusOK {
		status["status"] = "not ready"
	}

	writeJSON(w, code, status)
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Answering endpoints

// handleAnswer godoc
// @Summary      Answer a question
// @Description  One-shot retrieval with a relevance gate; falls back to general knowledge without learning
// @Tags         Answer
// @Accept       json
// @Produce      json
// @Param        request  body      QuestionRequest  true  "Question"
// @Success      200      {object}  domain.AnswerEnvelope
// @Failure      400      {object}  ErrorResponse
// @Failure      502      {object}  ErrorResponse
// @Router       /answer [post]
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuestion(w, r)
	if !ok {
		return
	}

	envelope, err := s.answerService.Answer(r.Context(), req.Question)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope)
}

// handleSearchInSyllabus godoc
// @Summary      Search the syllabus
// @Description  Answers from the syllabus only; 404 when the syllabus does not cover the question
// @Tags         Answer
// @Accept       json
// @Produce      json
// @Param        request  body      QuestionRequest  true  "Question"
// @Success      200      {object}  domain.AnswerEnvelope
// @Failure      404      {object}  ErrorResponse  "Not in syllabus"
// @Router       /syllabus/search [post]
func (s *Server) handleSearchInSyllabus(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuestion(w, r)
	if !ok {
		return
	}

	envelope, err := s.answerService.SearchInSyllabus(r.Context(), req.Question)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope)
}

// handleFallback godoc
// @Summary      Answer from general knowledge
// @Description  Answers without the syllabus and stores the answer as pending knowledge
// @Tags         Answer
// @Accept       json
// @Produce      json
// @Param        request  body      QuestionRequest  true  "Question"
// @Success      200      {object}  domain.AnswerEnvelope
// @Router       /fallback [post]
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuestion(w, r)
	if !ok {
		return
	}

	envelope, err := s.answerService.SearchWithFallbackAndLearn(r.Context(), req.Question)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope)
}

func (s *Server) decodeQuestion(w http.ResponseWriter, r *http.Request) (*QuestionRequest, bool) {
	var req QuestionRequest
	if !decodeAndValidate(w, r, &req) {
		return nil, false
	}
	return &req, true
}

// Chat endpoints

// handleChat godoc
// @Summary      Chat turn
// @Description  Answers a message in English or Vietnamese and records it in the session history
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        request  body      driving.ChatRequest  true  "Chat message"
// @Success      200      {object}  domain.ChatResponse
// @Router       /chat [post]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req driving.ChatRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := s.chatService.Ask(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleChatHistory godoc
// @Summary      Chat history
// @Tags         Chat
// @Produce      json
// @Param        sessionID  path      string  true  "Session ID"
// @Success      200        {object}  HistoryResponse
// @Router       /chat/{sessionID}/history [get]
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := s.chatService.History(r.Context(), sessionID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{SessionID: sessionID, Messages: messages})
}

// handleChatReset godoc
// @Summary      Reset chat
// @Tags         Chat
// @Param        sessionID  path  string  true  "Session ID"
// @Success      204
// @Router       /chat/{sessionID} [delete]
func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	if err := s.chatService.Reset(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Admin endpoints

// handleLogin godoc
// @Summary      Admin login
// @Description  Exchange the admin password for a JWT token
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Admin password"
// @Success      200      {object}  domain.LoginResponse
// @Failure      401      {object}  ErrorResponse  "Invalid credentials"
// @Router       /admin/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListPending godoc
// @Summary      List pending knowledge
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query     int  false  "Page size (max 100)"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {object}  driving.PendingPage
// @Router       /admin/pending [get]
func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	page, err := s.reviewService.ListPending(r.Context(), limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// handleApprove godoc
// @Summary      Approve pending knowledge
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Chunk ID"
// @Success      200  {object}  domain.Chunk
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse  "Not pending"
// @Router       /admin/pending/{id}/approve [post]
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	chunk, err := s.reviewService.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chunk)
}

// handleReject godoc
// @Summary      Reject pending knowledge
// @Tags         Admin
// @Security     BearerAuth
// @Param        id   path  string  true  "Chunk ID"
// @Success      204
// @Router       /admin/pending/{id} [delete]
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	if err := s.reviewService.Reject(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleScheduleIngest godoc
// @Summary      Schedule ingestion
// @Description  Enqueues a syllabus ingestion task for the worker
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      202  {object}  domain.Task
// @Failure      503  {object}  ErrorResponse  "No task queue"
// @Router       /admin/ingest [post]
func (s *Server) handleScheduleIngest(w http.ResponseWriter, r *http.Request) {
	requestedBy := domain.AdminSubject
	if authCtx := GetAuthContext(r.Context()); authCtx != nil {
		requestedBy = authCtx.Subject
	}

	task, err := s.ingestionService.Schedule(r.Context(), requestedBy)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, task)
}

// handleTaskStatus godoc
// @Summary      Task status
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Router       /admin/tasks/{id} [get]
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, err := s.ingestionService.TaskStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Helper functions

// statusForError maps domain errors onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotInSyllabus), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRetrievalFailed), errors.Is(err, domain.ErrGenerationFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrLockNotAcquired), errors.Is(err, domain.ErrInvalidStatusTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes the mapped status; internal details stay in the log
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, status, "internal server error")
		return
	}
	if status == http.StatusBadGateway {
		s.logger.Warn("upstream failure", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

// decodeAndValidate decodes a JSON body into v and runs its validate tags
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := validateStruct(v); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Fields: verr.Fields})
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
