// Package wire converts between the internal annotation model and the two
// backend families' raw JSON entries. The families' schemas are
// intentionally divergent; everything family-specific stays behind the
// Encoder interface.
package wire
