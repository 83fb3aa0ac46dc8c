package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"

	"bookshelf/internal/observability"
)

const maxJSONBodyBytes = 1 << 20

const (
	maxUsernameLength = 250
	maxPasswordLength = 200
)

type Handler struct {
	service *Service
	logger  *observability.Logger
}

func NewHandler(service *Service, logger *observability.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type registerRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type accountResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type loginResponse struct {
	Account      accountResponse `json:"account"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body registerRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" || len(body.Username) > maxUsernameLength {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if body.Password == "" || len(body.Password) > maxPasswordLength {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	account, err := h.service.Register(r.Context(), body.Username, body.Password, body.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken):
			h.logger.Warn("register_failed", map[string]any{"username": body.Username, "reason": "username_exists"})
			writeError(w, http.StatusBadRequest, "user with that username already exists")
		case errors.Is(err, ErrPasswordMismatch):
			h.logger.Warn("register_failed", map[string]any{"username": body.Username, "reason": "password_mismatch"})
			writeError(w, http.StatusBadRequest, "password confirmation does not match")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to register")
		}
		return
	}

	h.logger.Info("register_success", map[string]any{"account_id": account.ID, "username": account.Username})
	writeJSON(w, http.StatusCreated, map[string]any{
		"account_id": account.ID,
		"username":   account.Username,
		"message":    "account created successfully",
	})
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

	account, pair, err := h.service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		var locked ErrAccountLocked
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			h.logger.Warn("login_failed", map[string]any{"username": strings.TrimSpace(body.Username)})
			writeError(w, http.StatusUnauthorized, "incorrect username or password")
		case errors.As(err, &locked):
			h.logger.Warn("login_blocked", map[string]any{
				"username":     strings.TrimSpace(body.Username),
				"seconds_left": locked.SecondsLeft,
			})
			w.Header().Set("Retry-After", strconv.FormatInt(locked.SecondsLeft, 10))
			writeError(w, http.StatusForbidden, fmt.Sprintf("account blocked, try again in %d seconds", locked.SecondsLeft))
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to login")
		}
		return
	}

	h.logger.Info("login_success", map[string]any{"account_id": account.ID, "username": account.Username})
	writeJSON(w, http.StatusOK, loginResponse{
		Account:      accountResponse{ID: account.ID, Username: account.Username},
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body refreshRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	access, err := h.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRefreshToken):
			h.logger.Warn("refresh_failed", map[string]any{"reason": err.Error()})
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
		case errors.Is(err, ErrAccountNotFound):
			h.logger.Warn("refresh_failed", map[string]any{"reason": "account_not_found"})
			writeError(w, http.StatusUnauthorized, "account not found")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to refresh token")
		}
		return
	}

	h.logger.Info("refresh_success", nil)
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": access,
		"token_type":   "bearer",
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
