package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	votingengine "oikos/contexts/governance/voting-engine"
	governanceerrors "oikos/contexts/governance/voting-engine/domain/errors"
	governancehttp "oikos/contexts/governance/voting-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "oikos/internal/platform/httpserver/docs"
)

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	governance votingengine.Module
}

func New(governance votingengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		governance: governance,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /assemblies", s.handleCreateAssembly)
	s.mux.HandleFunc("POST /questions", s.handleCreateQuestion)
	s.mux.HandleFunc("GET /questions/{question_id}", s.handleGetQuestion)
	s.mux.HandleFunc("POST /questions/{question_id}/ballots", s.handleCastBallot)
	s.mux.HandleFunc("GET /questions/{question_id}/tally", s.handleTally)
	s.mux.HandleFunc("POST /questions/{question_id}/lifecycle", s.handleLifecycle)
	s.mux.HandleFunc("GET /questions/{question_id}/ballots/{voter_id}/history", s.handleAuditTrail)
}

func (s *Server) handleCreateAssembly(w http.ResponseWriter, r *http.Request) {
	var req governancehttp.CreateAssemblyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.governance.Handler.CreateAssemblyHandler(r.Context(), req)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req governancehttp.CreateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.governance.Handler.CreateQuestionHandler(r.Context(), req)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	questionID := r.PathValue("question_id")
	resp, err := s.governance.Handler.GetQuestionHandler(r.Context(), questionID)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastBallot(w http.ResponseWriter, r *http.Request) {
	var req governancehttp.CastBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	questionID := r.PathValue("question_id")
	resp, err := s.governance.Handler.CastBallotHandler(r.Context(), questionID, req)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	// A replacement is still a newly created effective ballot; the replaced
	// flag in the body tells the caller which case they hit.
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	questionID := r.PathValue("question_id")
	refresh := strings.EqualFold(r.URL.Query().Get("refresh"), "true")
	resp, err := s.governance.Handler.TallyHandler(r.Context(), questionID, refresh)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	var req governancehttp.LifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	questionID := r.PathValue("question_id")
	resp, err := s.governance.Handler.LifecycleHandler(r.Context(), questionID, req)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	questionID := r.PathValue("question_id")
	voterID := r.PathValue("voter_id")
	resp, err := s.governance.Handler.AuditTrailHandler(r.Context(), questionID, voterID)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeGovernanceDomainError(w http.ResponseWriter, err error) {
	var ineligible *governanceerrors.IneligibleStateError
	switch {
	case errors.Is(err, governanceerrors.ErrInvalidQuestionInput),
		errors.Is(err, governanceerrors.ErrInvalidBallotInput),
		errors.Is(err, governanceerrors.ErrChoiceNotAllowed):
		writeGovernanceError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, governanceerrors.ErrMissingConsent):
		writeGovernanceError(w, http.StatusBadRequest, "missing_consent", err.Error())
	case errors.As(err, &ineligible),
		errors.Is(err, governanceerrors.ErrQuestionClosed):
		writeGovernanceError(w, http.StatusConflict, "ineligible_state", err.Error())
	case errors.Is(err, governanceerrors.ErrStorageConflict),
		errors.Is(err, governanceerrors.ErrVersionConflict),
		errors.Is(err, governanceerrors.ErrConflict):
		writeGovernanceError(w, http.StatusConflict, "storage_conflict", err.Error())
	case errors.Is(err, governanceerrors.ErrUnknownVoter):
		writeGovernanceError(w, http.StatusNotFound, "unknown_voter", err.Error())
	case errors.Is(err, governanceerrors.ErrQuestionNotFound),
		errors.Is(err, governanceerrors.ErrAssemblyNotFound):
		writeGovernanceError(w, http.StatusNotFound, "question_not_found", err.Error())
	case errors.Is(err, governanceerrors.ErrIntegrity):
		writeGovernanceError(w, http.StatusUnprocessableEntity, "integrity", err.Error())
	default:
		writeGovernanceError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeGovernanceError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, governancehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
