// Package annotation defines the point/line/sphere annotation model, the
// canonical id scheme, and the pure updaters that keep derived fields
// (description, render properties) consistent with their inputs.
package annotation
