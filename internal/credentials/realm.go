// ABOUTME: Auth realm parsing for the three credential source kinds
// ABOUTME: Literal tokens, symbolic hub names, and bearer-token URLs

package credentials

import "strings"

// RealmKind discriminates how a realm string yields tokens.
type RealmKind int

const (
	// RealmLiteral is a self-contained "token:<literal>" realm. It can
	// never be refreshed; the literal is all there is.
	RealmLiteral RealmKind = iota

	// RealmHub is a symbolic hub name resolved through a platform-specific
	// auth flow. Refreshable.
	RealmHub

	// RealmURL is an HTTP(S) URL whose response body is the bearer token.
	// Refreshable by re-fetching the URL.
	RealmURL
)

func (k RealmKind) String() string {
	switch k {
	case RealmLiteral:
		return "literal"
	case RealmHub:
		return "hub"
	case RealmURL:
		return "url"
	default:
		return "unknown"
	}
}

const literalPrefix = "token:"

// Realm is a parsed auth realm.
type Realm struct {
	Kind RealmKind

	// Value is the literal token, the hub name, or the token URL,
	// depending on Kind.
	Value string
}

// ParseRealm classifies a realm string. Anything that is neither a literal
// token nor an HTTP(S) URL is treated as a symbolic hub name.
func ParseRealm(s string) Realm {
	switch {
	case strings.HasPrefix(s, literalPrefix):
		return Realm{Kind: RealmLiteral, Value: strings.TrimPrefix(s, literalPrefix)}
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return Realm{Kind: RealmURL, Value: s}
	default:
		return Realm{Kind: RealmHub, Value: s}
	}
}

// Refreshable reports whether an expired token for this realm can be
// re-acquired. Literal realms cannot; a 401 against one is terminal.
func (r Realm) Refreshable() bool {
	return r.Kind == RealmHub || r.Kind == RealmURL
}
