// Package auth is the boundary to the identity provider: it resolves API keys
// to actors and provides the role checks the core performs once per operation.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// Role is the access level claimed by an authenticated actor.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

var (
	// ErrSellerRequired is returned when a buyer attempts a seller-only
	// operation.
	ErrSellerRequired = errors.New("seller role required")

	// ErrKeyNotFound is returned when no active API key matches a hash.
	ErrKeyNotFound = errors.New("api key not found")
)

// Actor is an authenticated caller. The core trusts the identity provider's
// user ID and role claim.
type Actor struct {
	UserID string
	Name   string
	Email  string
	Role   Role
}

// IsSeller reports whether the actor holds the seller role.
func (a Actor) IsSeller() bool {
	return a.Role == RoleSeller
}

// RequireSeller returns ErrSellerRequired unless the actor is a seller.
func RequireSeller(a Actor) error {
	if !a.IsSeller() {
		return ErrSellerRequired
	}
	return nil
}

// APIKey holds the identity data stored for a validated API key.
type APIKey struct {
	ID      string
	KeyHash string
	UserID  string
	Name    string
	Email   string
	Role    Role
}

// Actor converts the stored key record into the actor it authenticates.
func (k *APIKey) Actor() Actor {
	return Actor{
		UserID: k.UserID,
		Name:   k.Name,
		Email:  k.Email,
		Role:   k.Role,
	}
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}

// HashKey computes the hex-encoded HMAC-SHA256 of an API key under the given
// pepper. The raw key is never stored.
func HashKey(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}
