package domain

import "time"

type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Price     int64     `json:"price"`
	Stock     int       `json:"stock"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type StockLevel struct {
	BookID string `json:"book_id"`
	Title  string `json:"title"`
	Stock  int    `json:"stock"`
}
