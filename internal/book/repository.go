package book

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const bookColumns = `id, title, author, description, price, owner_id, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Book, error) {
	return r.queryBooks(ctx, `
		SELECT `+bookColumns+`
		FROM books
		ORDER BY created_at DESC
	`)
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID int64) ([]Book, error) {
	return r.queryBooks(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
}

func (r *Repository) Get(ctx context.Context, id int64) (Book, error) {
	var b Book
	err := r.db.QueryRowContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.Price, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, fmt.Errorf("query book: %w", err)
	}

	return b, nil
}

func (r *Repository) Create(ctx context.Context, ownerID int64, input BookInput) (Book, error) {
	now := time.Now().UTC()

	var b Book
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO books (title, author, description, price, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING `+bookColumns+`
	`, input.Title, input.Author, input.Description, input.Price, ownerID, now).
		Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.Price, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Book{}, fmt.Errorf("insert book: %w", err)
	}

	return b, nil
}

func (r *Repository) Update(ctx context.Context, b Book) (Book, error) {
	b.UpdatedAt = time.Now().UTC()

	err := r.db.QueryRowContext(ctx, `
		UPDATE books
		SET title = $2, author = $3, description = $4, price = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+bookColumns+`
	`, b.ID, b.Title, b.Author, b.Description, b.Price, b.UpdatedAt).
		Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.Price, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, fmt.Errorf("update book: %w", err)
	}

	return b, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) queryBooks(ctx context.Context, query string, args ...any) ([]Book, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	books := make([]Book, 0)
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.Price, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}

	return books, nil
}
