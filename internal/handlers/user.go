// internal/handlers/user.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/kaboom/internal/auth"
	"github.com/jason-s-yu/kaboom/internal/database"
	"github.com/jason-s-yu/kaboom/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultGuestName = "Guest"
	maxUsernameLen   = 32
)

// Identity is who a request acts as.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// EnsureEphemeralUser resolves the caller's identity from their token. A caller
// without a valid token gets a fresh guest identity and a cookie carrying it; the
// guest is persisted when a database is configured. Must run before the response
// is written (or the socket accepted) so the cookie reaches the client.
func EnsureEphemeralUser(w http.ResponseWriter, r *http.Request) (Identity, error) {
	if token := extractToken(r); token != "" {
		claims, err := auth.AuthenticateJWT(token)
		if err == nil {
			name := claims.Username
			if name == "" {
				name = defaultGuestName
			}
			return Identity{UserID: claims.UserID, Username: name}, nil
		}
	}

	guest := models.User{
		Username:    sanitizeUsername(r.URL.Query().Get("name")),
		IsEphemeral: true,
	}
	if database.DB != nil {
		if err := database.CreateUser(r.Context(), &guest); err != nil {
			return Identity{}, fmt.Errorf("failed to create ephemeral user: %w", err)
		}
	} else {
		id, err := uuid.NewRandom()
		if err != nil {
			return Identity{}, fmt.Errorf("failed to generate guest id: %w", err)
		}
		guest.ID = id
	}

	token, err := auth.CreateJWT(guest.ID.String(), guest.Username)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to create ephemeral jwt: %w", err)
	}
	setAuthCookie(w, token, 0)
	return Identity{UserID: guest.ID, Username: guest.Username}, nil
}

func sanitizeUsername(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultGuestName
	}
	if utf8.RuneCountInString(name) > maxUsernameLen {
		name = string([]rune(name)[:maxUsernameLen])
	}
	return name
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// CreateUserHandler registers an account.
func CreateUserHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if database.DB == nil {
			http.Error(w, "accounts are unavailable", http.StatusServiceUnavailable)
			return
		}

		var req createUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if req.Email == "" || req.Password == "" {
			http.Error(w, "email and password are required", http.StatusBadRequest)
			return
		}

		user := models.User{
			Email:    req.Email,
			Password: req.Password,
			Username: sanitizeUsername(req.Username),
		}
		if err := database.CreateUser(r.Context(), &user); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				http.Error(w, "email already exists", http.StatusConflict)
				return
			}
			logger.Errorf("failed to create user: %v", err)
			http.Error(w, "error creating user", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// LoginHandler exchanges credentials for a session token, returned in the body and
// as the auth_token cookie.
//
// Request payload:
//
//	{
//	  "email": "someone@example.com",
//	  "password": "password"
//	}
//
// Response payload:
//
//	{
//	  "token": "{jwt}"
//	}
func LoginHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if database.DB == nil {
			http.Error(w, "accounts are unavailable", http.StatusServiceUnavailable)
			return
		}

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request payload", http.StatusBadRequest)
			return
		}

		token, err := database.AuthenticateUser(r.Context(), req.Email, req.Password)
		if errors.Is(err, database.ErrInvalidCredentials) {
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}
		if err != nil {
			logger.Errorf("failed to authenticate user: %v", err)
			http.Error(w, "authentication failed", http.StatusInternalServerError)
			return
		}

		setAuthCookie(w, token, 0)
		writeJSON(w, http.StatusOK, loginResponse{Token: token})
	}
}
