package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service        *Service
	sessions       *SessionManager
	clientIPHeader string
}

func NewHandler(service *Service, sessions *SessionManager, clientIPHeader string) *Handler {
	return &Handler{service: service, sessions: sessions, clientIPHeader: clientIPHeader}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	clientID := ClientIdentifier(r, h.clientIPHeader)
	identity, err := h.service.Login(r.Context(), clientID, body.Username, body.Password)
	if err != nil {
		var limited *RateLimitError
		if errors.As(err, &limited) {
			writeRateLimited(w, limited)
			return
		}
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	if _, err := h.sessions.Issue(NewHTTPCookies(w, r), identity); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Revoke(NewHTTPCookies(w, r))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// User reports the caller's identity, or null for anonymous callers.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.sessions.CurrentIdentity(NewHTTPCookies(nil, r))
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": identity})
}

// ChangePassword must be mounted behind RequireSession.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body changePasswordRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if body.CurrentPassword == "" || body.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "current_password and new_password are required")
		return
	}

	clientID := ClientIdentifier(r, h.clientIPHeader)
	if err := h.service.ChangePassword(r.Context(), clientID, identity.Username, body.CurrentPassword, body.NewPassword); err != nil {
		var limited *RateLimitError
		if errors.As(err, &limited) {
			writeRateLimited(w, limited)
			return
		}
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if errors.Is(err, ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}

	if _, err := h.sessions.Issue(NewHTTPCookies(w, r), identity); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeRateLimited(w http.ResponseWriter, limited *RateLimitError) {
	w.Header().Set("Retry-After", strconv.Itoa(limited.ResetInMinutes*60))
	writeError(w, http.StatusTooManyRequests,
		fmt.Sprintf("Too many login attempts. Please try again in %d minutes.", limited.ResetInMinutes))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
