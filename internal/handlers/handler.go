package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/teamroom/internal/broadcast"
	"github.com/eldtechnologies/teamroom/internal/chat"
	"github.com/eldtechnologies/teamroom/internal/models"
	"github.com/eldtechnologies/teamroom/internal/persona"
	"github.com/eldtechnologies/teamroom/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// MessageSender accepts human messages for a room. *chat.Orchestrator
// implements it.
type MessageSender interface {
	HandleHumanMessage(ctx context.Context, roomID, senderID uuid.UUID, content string) (*models.MessageEvent, error)
}

// Services bundles what the handlers need.
type Services struct {
	Store    store.DataStore
	Backend  string
	Redis    *store.RedisStore // nil when Redis is not configured
	Personas *persona.Registry
	Rooms    *chat.RoomRegistry
	Users    *chat.Directory
	History  *chat.HistoryReader
	Sender   MessageSender
	Hub      *broadcast.Hub
	Logger   zerolog.Logger
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store    store.DataStore
	backend  string
	redis    *store.RedisStore
	personas *persona.Registry
	rooms    *chat.RoomRegistry
	users    *chat.Directory
	history  *chat.HistoryReader
	sender   MessageSender
	hub      *broadcast.Hub
	logger   zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc Services) *Handler {
	return &Handler{
		store:    svc.Store,
		backend:  svc.Backend,
		redis:    svc.Redis,
		personas: svc.Personas,
		rooms:    svc.Rooms,
		users:    svc.Users,
		history:  svc.History,
		sender:   svc.Sender,
		hub:      svc.Hub,
		logger:   svc.Logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Fail maps a domain error to its HTTP status. Unexpected errors are logged
// and reported as fallback.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, chat.ErrRoomNotFound),
		errors.Is(err, chat.ErrProjectNotFound),
		errors.Is(err, chat.ErrUserNotFound),
		errors.Is(err, chat.ErrUnknownPersona):
		h.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrInvalidMembership),
		errors.Is(err, chat.ErrInvalidRoomKind),
		errors.Is(err, chat.ErrEmptyContent):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNotParticipant):
		h.Error(w, http.StatusForbidden, err.Error())
	default:
		h.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg(fallback)
		h.Error(w, http.StatusInternalServerError, fallback)
	}
}

// pathUUID parses a UUID route parameter, writing a 400 on failure.
func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid "+what+" ID format")
		return uuid.Nil, false
	}
	return id, true
}

// sanitizeName trims and limits name to 100 characters, removing control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if runes := []rune(name); len(runes) > 100 {
		name = string(runes[:100])
	}

	return name
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if email == "" {
		return true // optional
	}
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
