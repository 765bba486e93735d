package maintenance

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const maxJSONBodyBytes = 1 << 16

// RateLimitStore is the part of the login limiter operators can inspect.
type RateLimitStore interface {
	Len() int
	Reset(identifier string)
}

// RateLimitHandler exposes login limiter state to a scheduler holding CRON_SECRET.
// Every route answers 404 when no secret is configured.
type RateLimitHandler struct {
	limiter    RateLimitStore
	logger     *zap.Logger
	cronSecret string
}

func NewRateLimitHandler(limiter RateLimitStore, logger *zap.Logger, cronSecret string) *RateLimitHandler {
	return &RateLimitHandler{
		limiter:    limiter,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
	}
}

func (h *RateLimitHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tracked": h.limiter.Len()})
}

type resetRequest struct {
	Identifier string `json:"identifier"`
}

func (h *RateLimitHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body resetRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	body.Identifier = strings.TrimSpace(body.Identifier)
	if body.Identifier == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "identifier is required"})
		return
	}

	h.limiter.Reset(body.Identifier)
	h.logger.Info("rate_limit_reset", zap.String("identifier", body.Identifier))

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "tracked": h.limiter.Len()})
}

func (h *RateLimitHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return false
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") ||
		subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.cronSecret)) != 1 {
		h.logger.Warn("maintenance_unauthorized", zap.String("path", r.URL.Path))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
