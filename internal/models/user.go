package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is an end customer who takes tickets.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Email     string    `bun:"email,unique,nullzero" json:"email,omitempty"`
	Phone     string    `bun:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}
