package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the billing view of an account. Accounts are created elsewhere.
type User struct {
	ID      uuid.UUID       `json:"id"`
	Balance decimal.Decimal `json:"balance"`
	Role    Role            `json:"role"`
}

// Caller is an identity already resolved by the gateway in front of the hub.
type Caller struct {
	UserID uuid.UUID
	Admin  bool
}

// Owns reports whether the caller may act on r.
func (c Caller) Owns(r *Rental) bool {
	return c.Admin || r.UserID == c.UserID
}

// EndedBy is the attribution recorded when the caller closes r.
func (c Caller) EndedBy(r *Rental) EndedBy {
	if r.UserID == c.UserID {
		return EndedByUser
	}
	return EndedByAdmin
}
