// ABOUTME: Remote endpoint description and the per-family URL shapes
// ABOUTME: Family A addresses entries by key path, family B by position query

package source

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/2389/annosync/internal/annotation"
)

// Endpoint describes one remote annotation collection.
type Endpoint struct {
	// Name is a human label for logs and config references.
	Name string

	Family  annotation.Family
	Version int

	// Kind is the collection's default annotation kind, used to synthesize
	// missing discriminants during decode.
	Kind string

	// BaseURL is the collection root, without a trailing slash.
	BaseURL string

	// Group optionally scopes bulk downloads to an annotation group.
	Group string
}

// ListURL is the canonical "all annotations" URL. It doubles as the cache
// identity for this endpoint: one cache instance exists per distinct value.
func (e Endpoint) ListURL() string {
	u := e.BaseURL + "/all"
	if e.Group != "" {
		u += "?group=" + url.QueryEscape(e.Group)
	}
	return u
}

// WriteURL is the create/update target for an entry key.
func (e Endpoint) WriteURL(key string) string {
	if e.Family == annotation.FamilyA {
		return e.BaseURL + "/key/" + url.PathEscape(key)
	}
	return e.BaseURL
}

// DeleteURL addresses an entry for deletion. Family A deletes by key path;
// family B only supports deletion by position query.
func (e Endpoint) DeleteURL(key string) string {
	if e.Family == annotation.FamilyA {
		return e.BaseURL + "/key/" + url.PathEscape(key)
	}
	return fmt.Sprintf("%s?pos=%s", e.BaseURL, url.QueryEscape(positionOf(key)))
}

// positionOf strips the geometry prefix from a derived key, leaving the
// bare coordinate string family B's position query expects.
func positionOf(key string) string {
	for _, prefix := range []string{"Pt", "Ln", "Sp"} {
		if strings.HasPrefix(key, prefix) {
			return key[len(prefix):]
		}
	}
	return key
}
