// Package httpx wraps HTTP calls to the annotation backends with credential
// injection, refresh-on-auth-failure, and bounded gateway-timeout retry.
package httpx
