// Package drafts persists annotations the upload policy keeps local, so
// unfinished work survives restarts even though the backend never stores it.
package drafts
