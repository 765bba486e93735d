package entry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

const (
	maxJSONBodyBytes = 1 << 20
	maxBulkEntries   = 5000
	maxTextLength    = 1000
)

// Accepted layouts for the time field; values without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

type Store interface {
	List(ctx context.Context) ([]Entry, error)
	Create(ctx context.Context, input EntryInput) (Entry, error)
	CreateBulk(ctx context.Context, inputs []EntryInput) (int, error)
	Update(ctx context.Context, id string, input EntryInput) (Entry, error)
	Delete(ctx context.Context, id string) error
}

// Handler serves the entries API. Every route is expected behind auth.RequireSession.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var input EntryInput
	if !decodeBody(w, r, &input) {
		return
	}
	if msg := validateInput(&input); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	e, err := h.store.Create(r.Context(), input)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create entry")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "entry": e})
}

func (h *Handler) BulkCreateEntries(w http.ResponseWriter, r *http.Request) {
	var inputs []EntryInput
	if !decodeBody(w, r, &inputs) {
		return
	}
	if len(inputs) == 0 {
		writeError(w, http.StatusBadRequest, "request body must be a non-empty array of entries")
		return
	}
	if len(inputs) > maxBulkEntries {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d entries per request", maxBulkEntries))
		return
	}
	for i := range inputs {
		if msg := validateInput(&inputs[i]); msg != "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("entry %d: %s", i, msg))
			return
		}
	}

	count, err := h.store.CreateBulk(r.Context(), inputs)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to bulk insert entries")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "count": count})
}

func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validID(w, id) {
		return
	}

	var input EntryInput
	if !decodeBody(w, r, &input) {
		return
	}
	h.update(w, r, id, input)
}

// entryUpdateRequest carries the id in the body, as PUT /api/entries sends it.
type entryUpdateRequest struct {
	ID string `json:"id"`
	EntryInput
}

func (h *Handler) UpdateEntryFromBody(w http.ResponseWriter, r *http.Request) {
	var body entryUpdateRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if !validID(w, body.ID) {
		return
	}
	h.update(w, r, body.ID, body.EntryInput)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, id string, input EntryInput) {
	if msg := validateInput(&input); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	e, err := h.store.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update entry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entry": e})
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, r.PathValue("id"))
}

// DeleteEntryByQuery serves DELETE /api/entries?id=.
func (h *Handler) DeleteEntryByQuery(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, r.URL.Query().Get("id"))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if !validID(w, id) {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete entry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Entry deleted successfully"})
}

func validID(w http.ResponseWriter, id string) bool {
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

// validateInput normalizes input in place and returns a client-facing message on failure.
func validateInput(input *EntryInput) string {
	input.Time = strings.TrimSpace(input.Time)
	if input.Time == "" {
		return "time is required"
	}
	parsed, ok := parseTime(input.Time)
	if !ok {
		return "time is invalid"
	}
	input.parsedTime = parsed

	for _, v := range []*float64{input.FeedingAmount, input.Sensor, input.GlucometerReading, input.Drip} {
		if v != nil && *v < 0 {
			return "measurements must be >= 0"
		}
	}

	input.NutritionType = trimOptional(input.NutritionType)
	input.Extra = trimOptional(input.Extra)
	for _, v := range []*string{input.NutritionType, input.Extra} {
		if v != nil && (!utf8.ValidString(*v) || len(*v) > maxTextLength) {
			return "text fields are invalid"
		}
	}

	return ""
}

func parseTime(value string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
