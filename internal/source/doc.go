// Package source orchestrates annotation CRUD and bulk synchronization for
// one remote collection, tying together the encoder registry, the
// per-endpoint cache, and the credentialed HTTP client.
package source
