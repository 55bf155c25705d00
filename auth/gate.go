package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"library-api/library"
)

// Reason names why a request was turned away.
type Reason string

const (
	ReasonMissingToken    Reason = "missing_token"
	ReasonMalformedHeader Reason = "malformed_header"
	ReasonTokenExpired    Reason = "token_expired"
	ReasonTokenInvalid    Reason = "token_invalid"
	ReasonUserNotFound    Reason = "user_not_found"
	ReasonLookupFailed    Reason = "lookup_failed"
)

// Rejection is the outcome of a failed Check. Status and Message are what
// the client is shown; Err carries the underlying cause, if any, for logs.
type Rejection struct {
	Reason  Reason
	Status  int
	Message string
	Err     error
}

// MemberLookup resolves a decoded user id to a member.
type MemberLookup interface {
	GetMember(ctx context.Context, id int64) (*library.Member, error)
}

// Gate admits requests carrying a valid bearer token for an existing member.
type Gate struct {
	tokens  *Tokens
	members MemberLookup
}

func NewGate(tokens *Tokens, members MemberLookup) *Gate {
	return &Gate{tokens: tokens, members: members}
}

// Check returns the principal for r, or the reason it was rejected.
// Exactly one of the two results is non-nil.
func (g *Gate) Check(r *http.Request) (*library.Member, *Rejection) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, &Rejection{Reason: ReasonMissingToken, Status: http.StatusForbidden, Message: "Token is missing!"}
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, &Rejection{Reason: ReasonMalformedHeader, Status: http.StatusForbidden, Message: "Token format is invalid!"}
	}

	userID, err := g.tokens.Decode(parts[1])
	switch {
	case errors.Is(err, ErrTokenExpired):
		return nil, &Rejection{Reason: ReasonTokenExpired, Status: http.StatusForbidden, Message: "Token has expired!", Err: err}
	case err != nil:
		return nil, &Rejection{Reason: ReasonTokenInvalid, Status: http.StatusForbidden, Message: "Invalid token!", Err: err}
	}

	member, err := g.members.GetMember(r.Context(), userID)
	switch {
	case errors.Is(err, library.ErrNotFound):
		return nil, &Rejection{Reason: ReasonUserNotFound, Status: http.StatusNotFound, Message: "User not found!"}
	case err != nil:
		return nil, &Rejection{Reason: ReasonLookupFailed, Status: http.StatusInternalServerError, Message: "Internal server error", Err: err}
	}
	return member, nil
}

type principalKey struct{}

// WithPrincipal stores the authenticated member on ctx.
func WithPrincipal(ctx context.Context, m *library.Member) context.Context {
	return context.WithValue(ctx, principalKey{}, m)
}

// PrincipalFrom returns the member stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (*library.Member, bool) {
	m, ok := ctx.Value(principalKey{}).(*library.Member)
	return m, ok
}
