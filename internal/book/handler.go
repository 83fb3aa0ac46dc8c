package book

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"

	"bookshelf/internal/auth"
	"bookshelf/internal/observability"
)

const maxJSONBodyBytes = 1 << 20

const (
	maxTitleLength       = 255
	maxAuthorLength      = 255
	maxDescriptionLength = 10000
)

// Store is what the handler needs from persistence; satisfied by Repository
// and by test fakes.
type Store interface {
	List(ctx context.Context) ([]Book, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Book, error)
	Get(ctx context.Context, id int64) (Book, error)
	Create(ctx context.Context, ownerID int64, input BookInput) (Book, error)
	Update(ctx context.Context, b Book) (Book, error)
	Delete(ctx context.Context, id int64) error
}

// Handler serves the book CRUD endpoints. All mutating operations check
// owner_id equality against the account the auth resolver attached to the
// request; the public list is the only route without it.
type Handler struct {
	store  Store
	logger *observability.Logger
}

func NewHandler(store Store, logger *observability.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.store.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list books")
		return
	}

	writeJSON(w, http.StatusOK, books)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authenticated account")
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	b, err := h.store.Create(r.Context(), account.ID, input)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create book")
		return
	}

	h.logger.Info("book_created", map[string]any{"account_id": account.ID, "book_id": b.ID})
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authenticated account")
		return
	}

	books, err := h.store.ListByOwner(r.Context(), account.ID)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list books")
		return
	}

	writeJSON(w, http.StatusOK, books)
}

func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	_, b, ok := h.ownedBook(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) UpdateMine(w http.ResponseWriter, r *http.Request) {
	account, b, ok := h.ownedBook(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var patch BookPatch
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if patch.Title != nil {
		b.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Author != nil {
		b.Author = strings.TrimSpace(*patch.Author)
	}
	if patch.Description != nil {
		b.Description = *patch.Description
	}
	if patch.Price != nil {
		b.Price = *patch.Price
	}
	if msg, ok := validateFields(b.Title, b.Author, b.Description, b.Price); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := h.store.Update(r.Context(), b)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update book")
		return
	}

	h.logger.Info("book_updated", map[string]any{"account_id": account.ID, "book_id": updated.ID})
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteMine(w http.ResponseWriter, r *http.Request) {
	account, b, ok := h.ownedBook(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), b.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete book")
		return
	}

	h.logger.Warn("book_deleted", map[string]any{"account_id": account.ID, "book_id": b.ID})
	w.WriteHeader(http.StatusNoContent)
}

// ownedBook loads the book in the path and enforces ownership. A foreign
// book is reported as 403, not 404, matching the distinction between
// "does not exist" and "not yours".
func (h *Handler) ownedBook(w http.ResponseWriter, r *http.Request) (auth.Account, Book, bool) {
	account, ok := auth.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authenticated account")
		return auth.Account{}, Book{}, false
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return auth.Account{}, Book{}, false
	}

	b, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return auth.Account{}, Book{}, false
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load book")
		return auth.Account{}, Book{}, false
	}

	if b.OwnerID != account.ID {
		h.logger.Warn("book_access_denied", map[string]any{"account_id": account.ID, "book_id": b.ID})
		writeError(w, http.StatusForbidden, "not allowed")
		return auth.Account{}, Book{}, false
	}

	return account, b, true
}

func parseInput(w http.ResponseWriter, r *http.Request) (BookInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input BookInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return BookInput{}, false
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Author = strings.TrimSpace(input.Author)

	if msg, ok := validateFields(input.Title, input.Author, input.Description, input.Price); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return BookInput{}, false
	}

	return input, true
}

func validateFields(title, author, description string, price int64) (string, bool) {
	if title == "" {
		return "title is required", false
	}
	if !utf8.ValidString(title) || len(title) > maxTitleLength {
		return "title is invalid", false
	}
	if author == "" {
		return "author is required", false
	}
	if !utf8.ValidString(author) || len(author) > maxAuthorLength {
		return "author is invalid", false
	}
	if !utf8.ValidString(description) || len(description) > maxDescriptionLength {
		return "description is invalid", false
	}
	if price < 0 {
		return "price must be >= 0", false
	}

	return "", true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
