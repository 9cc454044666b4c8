package domain

import "time"

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Hash      string    `db:"password_hash" json:"-"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Party is the public face of a user inside listings and trades.
type Party struct {
	ID     string  `db:"id" json:"id"`
	Name   string  `db:"name" json:"name"`
	Rating float64 `db:"rating" json:"rating"`
	Trades int     `db:"trades" json:"trades"`
}
