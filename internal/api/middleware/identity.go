package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/eldtechnologies/teamroom/internal/models"
	"github.com/eldtechnologies/teamroom/internal/store"
)

type contextKey string

// UserContextKey holds the *models.User identified for a request.
const UserContextKey contextKey = "user"

// UserHeader carries the id of the human a request acts for.
const UserHeader = "X-Teamroom-User"

// UserLookup resolves user ids. store.DataStore satisfies it.
type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

var _ UserLookup = store.DataStore(nil)

// Identity resolves the X-Teamroom-User header to a registered user.
type Identity struct {
	users UserLookup
}

// NewIdentity creates the identity middleware.
func NewIdentity(users UserLookup) *Identity {
	return &Identity{users: users}
}

// RequireUser rejects requests that do not name a registered user.
func (m *Identity) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserHeader)
		if raw == "" {
			jsonError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid user ID format")
			return
		}

		user, err := m.users.GetUserByID(r.Context(), userID)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "database error")
			return
		}
		if user == nil {
			jsonError(w, http.StatusUnauthorized, "user not found")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserFromContext returns the identified user, or nil.
func GetUserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserContextKey).(*models.User)
	return user
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
