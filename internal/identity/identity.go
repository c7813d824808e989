package identity

import (
	"context"
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNoSession      = errors.New("no authenticated session")
	ErrInvalidSession = errors.New("invalid or expired session")
)

// User is the authenticated identity yielded by the provider.
type User struct {
	ID string
}

// Membership is one organization the user belongs to.
type Membership struct {
	OrganizationID string `json:"organizationId"`
}

// Provider is the external identity provider at its interface boundary:
// it yields a user identity from a request's session and the user's
// organization membership list. The provider itself (session issuance,
// sign-in UI) is not implemented here.
type Provider interface {
	// UserFromRequest resolves the request's session to a user.
	// Returns ErrNoSession when no session is present and
	// ErrInvalidSession when one is present but unusable.
	UserFromRequest(r *http.Request) (*User, error)

	// Memberships fetches the user's organization memberships.
	Memberships(ctx context.Context, userID string) ([]Membership, error)
}
