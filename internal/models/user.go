package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	Roles        RoleSet   `json:"roles"`
	Addresses    []Address `json:"addresses"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Address struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"userId"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zipCode"`
	Main       bool   `json:"main"`
}

// ClaimedIdentity is the principal named by a verified credential, not yet
// matched to a persisted user.
type ClaimedIdentity struct {
	Email string
}

// Identity is a resolved principal. It is built per request and never mutated.
type Identity struct {
	UserID int64
	Email  string
	Roles  RoleSet
}

type SignupRequest struct {
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Password  string    `json:"password"`
	Addresses []Address `json:"addresses"`
}

type UserInsertRequest struct {
	SignupRequest
	Roles []Role `json:"roles"`
}

type UserUpdateRequest struct {
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Roles     []Role    `json:"roles"`
	Addresses []Address `json:"addresses"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token,omitempty"`
}
