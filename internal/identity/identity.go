// Package identity models the actor behind a request. Actors are either
// authenticated users, resolved from a verified token, or anonymous
// visitors carrying a browser-minted token the server never issues.
package identity

import "strings"

type Kind string

const (
	KindUser      Kind = "user"
	KindAnonymous Kind = "anonymous"
)

// Actor is the resolved identity for a request. Name is only set for
// authenticated actors; anonymous actors are identified solely by their
// opaque token.
type Actor struct {
	Kind Kind
	ID   string
	Name string
}

func Authenticated(id, name string) Actor {
	return Actor{Kind: KindUser, ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)}
}

func Anonymous(token string) Actor {
	return Actor{Kind: KindAnonymous, ID: strings.TrimSpace(token)}
}

// Key is the stable ledger identity. Authenticated and anonymous actors
// live in distinct namespaces so a user ID can never collide with an
// anonymous token.
func (a Actor) Key() string {
	switch a.Kind {
	case KindUser:
		return "user:" + a.ID
	case KindAnonymous:
		return "anon:" + a.ID
	default:
		return ""
	}
}

func (a Actor) IsZero() bool {
	return a.ID == ""
}

func (a Actor) IsAuthenticated() bool {
	return a.Kind == KindUser && a.ID != ""
}
