// Package cache provides the per-endpoint store of raw backend entries used
// to avoid refetching and to back overwrite-conflict and delete-ownership
// checks.
package cache
