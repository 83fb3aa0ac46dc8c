package book

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("book not found")

type Book struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type BookInput struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
}

// BookPatch is a partial update; nil fields are left untouched.
type BookPatch struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Description *string `json:"description"`
	Price       *int64  `json:"price"`
}
