package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/eldtechnologies/teamroom/internal/chat"
)

// RegisterRequest represents the user registration request body.
type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserResponse represents a user profile.
type UserResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	JoinedAt string `json:"joined_at"`
}

// RegisterUser handles human registration. Registering an email twice
// returns the existing user with 200.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	email := strings.TrimSpace(req.Email)
	if !isValidEmail(email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}

	user, created, err := h.users.RegisterUser(r.Context(), name, email)
	if err != nil {
		h.Fail(w, r, err, "failed to register user")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.JSON(w, status, UserResponse{
		ID:       user.ID.String(),
		Name:     user.Name,
		Email:    user.Email,
		JoinedAt: user.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// GetUser handles user profile lookup.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id", "user")
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), id)
	if errors.Is(err, chat.ErrUserNotFound) {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.Fail(w, r, err, "database error")
		return
	}

	h.JSON(w, http.StatusOK, UserResponse{
		ID:       user.ID.String(),
		Name:     user.Name,
		Email:    user.Email,
		JoinedAt: user.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}
