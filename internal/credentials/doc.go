// Package credentials acquires and refreshes bearer tokens for the auth
// realms the annotation backends use: self-contained literals, symbolic hub
// names, and bearer-token URLs.
package credentials
