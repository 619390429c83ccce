package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"branchq/queue-service/internal/cache"
	"branchq/queue-service/internal/metrics"
	"branchq/queue-service/internal/models"
	"branchq/queue-service/internal/store"

	"github.com/google/uuid"
)

type Handler struct {
	store       store.TokenStore
	credentials *cache.Cache
}

func NewHandler(store store.TokenStore, credentials *cache.Cache) *Handler {
	return &Handler{store: store, credentials: credentials}
}

type registerRequest struct {
	Name         string   `json:"name"`
	Mobile       string   `json:"mobile"`
	OutletID     string   `json:"outlet_id"`
	ServiceTypes []string `json:"service_types"`
	Languages    []string `json:"languages"`
	Credential   string   `json:"credential"`
}

type nextTokenRequest struct {
	OfficerID string `json:"officer_id"`
	Mode      string `json:"mode"`
}

type tokenActionRequest struct {
	OfficerID string `json:"officer_id"`
}

type loginRequest struct {
	CounterNumber int `json:"counter_number"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tokens", h.handleTokens)
	mux.HandleFunc("/api/tokens/actions/next", h.handleNextToken)
	mux.HandleFunc("/api/tokens/unmatched", h.handleUnmatched)
	mux.HandleFunc("/api/tokens/waiting", h.handleWaiting)
	mux.HandleFunc("/api/tokens/", h.handleTokenActions)
	mux.HandleFunc("/api/officers/", h.handleOfficerActions)
	mux.HandleFunc("/api/events", h.handleEvents)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Mobile = strings.TrimSpace(req.Mobile)
	req.OutletID = strings.TrimSpace(req.OutletID)
	req.Credential = strings.TrimSpace(req.Credential)

	if req.Name == "" || req.Mobile == "" || req.OutletID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name, mobile, and outlet_id are required")
		return
	}
	if !isValidUUID(req.OutletID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "outlet_id must be a UUID")
		return
	}
	if len(req.ServiceTypes) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "at least one service type is required")
		return
	}

	// The credential was minted by the front-desk collaborator for a single
	// outlet. Consuming it here makes it single-use.
	authorized := false
	if req.Credential != "" {
		if outletID, ok := h.credentials.Consume(req.Credential); ok && outletID == req.OutletID {
			authorized = true
		}
	}

	token, err := h.store.Register(r.Context(), store.RegisterInput{
		Name:         req.Name,
		Mobile:       req.Mobile,
		OutletID:     req.OutletID,
		ServiceTypes: req.ServiceTypes,
		Languages:    req.Languages,
		Authorized:   authorized,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	metrics.TokensIssued.Inc()
	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) handleNextToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req nextTokenRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.OfficerID = strings.TrimSpace(req.OfficerID)
	req.Mode = strings.TrimSpace(req.Mode)
	if req.Mode == "" {
		req.Mode = models.ModeStrict
	}
	if req.OfficerID == "" || !isValidUUID(req.OfficerID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "officer_id must be a UUID")
		return
	}
	if req.Mode != models.ModeStrict && req.Mode != models.ModeUnmatchedBypass {
		writeError(w, http.StatusBadRequest, "invalid_request", "mode must be strict or unmatched_bypass")
		return
	}

	token, err := h.store.NextToken(r.Context(), store.NextTokenInput{
		OfficerID: req.OfficerID,
		Mode:      req.Mode,
		CalledAt:  time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrAssignConflict) {
			metrics.MatchConflicts.Inc()
		}
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	outletID := strings.TrimSpace(r.URL.Query().Get("outlet_id"))
	if outletID == "" || !isValidUUID(outletID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "outlet_id must be a UUID")
		return
	}

	tokens, err := h.store.UnmatchedTokens(r.Context(), outletID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if tokens == nil {
		tokens = []models.Token{}
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) handleWaiting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	outletID := strings.TrimSpace(r.URL.Query().Get("outlet_id"))
	if outletID == "" || !isValidUUID(outletID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "outlet_id must be a UUID")
		return
	}

	tokens, err := h.store.ListWaiting(r.Context(), outletID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if tokens == nil {
		tokens = []models.Token{}
	}
	writeJSON(w, http.StatusOK, tokens)
}

// handleTokenActions covers GET /api/tokens/{id} and
// POST /api/tokens/{id}/{call|skip|recall|complete|priority}.
func (h *Handler) handleTokenActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tokens/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	if len(parts) == 1 && parts[0] != "" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.getToken(w, r, parts[0])
		return
	}

	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tokenID, action := parts[0], parts[1]
	if !isValidUUID(tokenID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "token id must be a UUID")
		return
	}

	if action == "priority" {
		token, err := h.store.SetPriority(r.Context(), tokenID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, token)
		return
	}

	var req tokenActionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.OfficerID = strings.TrimSpace(req.OfficerID)
	if req.OfficerID == "" || !isValidUUID(req.OfficerID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "officer_id must be a UUID")
		return
	}

	input := store.TokenActionInput{
		OfficerID:  req.OfficerID,
		TokenID:    tokenID,
		OccurredAt: time.Now().UTC(),
	}

	var token models.Token
	var err error
	switch action {
	case "call":
		token, err = h.store.CallToken(r.Context(), input)
	case "skip":
		token, err = h.store.SkipToken(r.Context(), input)
	case "recall":
		token, err = h.store.RecallToken(r.Context(), input)
	case "complete":
		token, err = h.store.CompleteToken(r.Context(), input)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if action == "complete" {
		metrics.TokensCompleted.Inc()
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) getToken(w http.ResponseWriter, r *http.Request, tokenID string) {
	if !isValidUUID(tokenID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "token id must be a UUID")
		return
	}
	token, err := h.store.GetToken(r.Context(), tokenID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// handleOfficerActions covers POST /api/officers/{id}/{login|logout} and
// POST /api/officers/{id}/breaks/{start|end}.
func (h *Handler) handleOfficerActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/officers/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) < 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	officerID := parts[0]
	if !isValidUUID(officerID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "officer id must be a UUID")
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "login":
		var req loginRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		officer, err := h.store.OfficerLogin(r.Context(), store.LoginInput{
			OfficerID:     officerID,
			CounterNumber: req.CounterNumber,
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, officer)

	case len(parts) == 2 && parts[1] == "logout":
		officer, err := h.store.OfficerLogout(r.Context(), officerID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, officer)

	case len(parts) == 3 && parts[1] == "breaks" && parts[2] == "start":
		breakLog, err := h.store.StartBreak(r.Context(), officerID, time.Now().UTC())
		if err != nil {
			countBreakDenial(err)
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, breakLog)

	case len(parts) == 3 && parts[1] == "breaks" && parts[2] == "end":
		breakLog, err := h.store.EndBreak(r.Context(), officerID, time.Now().UTC())
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, breakLog)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var after time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("after")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "after must be RFC3339")
			return
		}
		after = parsed
	}
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.store.ListOutboxEvents(r.Context(), after, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if events == nil {
		events = []store.OutboxEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func countBreakDenial(err error) {
	var cooldown *store.CooldownError
	switch {
	case errors.Is(err, store.ErrBreakActive):
		metrics.BreakDenials.WithLabelValues("active").Inc()
	case errors.As(err, &cooldown):
		metrics.BreakDenials.WithLabelValues("cooldown").Inc()
	case errors.Is(err, store.ErrBreakQuota):
		metrics.BreakDenials.WithLabelValues("quota").Inc()
	case errors.Is(err, store.ErrBreakBudget):
		metrics.BreakDenials.WithLabelValues("budget").Inc()
	}
}

func mapError(err error) (int, string, string) {
	var duplicate *store.DuplicateTokenError
	var cooldown *store.CooldownError
	switch {
	case errors.As(err, &duplicate):
		return http.StatusConflict, "duplicate_token", duplicate.Error()
	case errors.As(err, &cooldown):
		return http.StatusUnprocessableEntity, "break_cooldown", cooldown.Error()
	// Unauthorized registration is a validation failure on the request, same
	// class as a missing field: the client must present a valid credential.
	case errors.Is(err, store.ErrNotAuthorized):
		return http.StatusBadRequest, "not_authorized", "registration credential missing or invalid"
	case errors.Is(err, store.ErrNoMatch):
		return http.StatusConflict, "no_match", "no token this officer can serve"
	case errors.Is(err, store.ErrAssignConflict):
		return http.StatusConflict, "assign_conflict", "token was claimed concurrently, retry"
	case errors.Is(err, store.ErrBreakActive):
		return http.StatusConflict, "break_active", err.Error()
	case errors.Is(err, store.ErrBreakQuota),
		errors.Is(err, store.ErrBreakBudget),
		errors.Is(err, store.ErrNoActiveBreak),
		errors.Is(err, store.ErrInvalidState),
		errors.Is(err, store.ErrOfficerUnprovisioned),
		errors.Is(err, store.ErrOfficerUnavailable),
		errors.Is(err, store.ErrOutletInactive):
		return http.StatusUnprocessableEntity, "business_rule", err.Error()
	case errors.Is(err, store.ErrCounterCapacity):
		return http.StatusUnprocessableEntity, "capacity", err.Error()
	case errors.Is(err, store.ErrTokenNotFound),
		errors.Is(err, store.ErrOfficerNotFound),
		errors.Is(err, store.ErrOutletNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, store.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout", "operation timed out, retry once"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}
