package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// IngredientCost is one observed purchase price. Its presence for a user is
// what marks an ingredient as available to them.
type IngredientCost struct {
	ID          string    `json:"id"`
	Ingredient  string    `json:"ingredient"`
	Store       string    `json:"store"`
	Location    string    `json:"location"`
	Cost        float64   `json:"cost"`
	LastUpdated time.Time `json:"last_updated"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
