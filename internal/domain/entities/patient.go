package entities

import "time"

// Patient is a card holder who can check in to a department queue
type Patient struct {
	ID         string    `json:"id" db:"id"`
	CardNumber string    `json:"card_number" db:"card_number"`
	FullName   string    `json:"full_name" db:"full_name"`
	Phone      string    `json:"phone" db:"phone"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
