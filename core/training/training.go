package training

import (
	"errors"
	"time"
)

type Status string

const (
	Draft     Status = "draft"
	Published Status = "published"
	Archived  Status = "archived"
)

var (
	ErrNotFound = errors.New("training not found")
	ErrFull     = errors.New("training is full")
)

type Training struct {
	ID                  string    `json:"id" db:"training_id"`
	Slug                string    `json:"slug" db:"slug"`
	Title               string    `json:"title" db:"title"`
	Description         string    `json:"description" db:"description"`
	Price               int64     `json:"price" db:"price"`
	DepositPercentage   int       `json:"depositPercentage" db:"deposit_percentage"`
	Date                time.Time `json:"date" db:"date"`
	MaxParticipants     int       `json:"maxParticipants" db:"max_participants"`
	CurrentParticipants int       `json:"currentParticipants" db:"current_participants"`
	Status              Status    `json:"status" db:"status"`
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time `json:"updatedAt" db:"updated_at"`
}

func (t Training) Full() bool {
	return t.CurrentParticipants >= t.MaxParticipants
}

// DepositAmount is what gets charged up front. A percentage below 100
// means a partial deposit; anything else charges the full price.
func DepositAmount(t Training) int64 {
	if t.DepositPercentage > 0 && t.DepositPercentage < 100 {
		return t.Price * int64(t.DepositPercentage) / 100
	}
	return t.Price
}
