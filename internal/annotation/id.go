// ABOUTME: Canonical id derivation and classification for annotations
// ABOUTME: Ids are pure functions of geometry, coordinates, and (family B) author

package annotation

import (
	"errors"
	"fmt"
	"regexp"
)

// Family identifies which remote backend wire protocol an endpoint speaks.
// The two families are incompatible by design and never unified.
type Family int

const (
	FamilyA Family = iota
	FamilyB
)

// String returns the short family tag used in config files and logs.
func (f Family) String() string {
	if f == FamilyB {
		return "b"
	}
	return "a"
}

// ErrInvalidID is returned when an id string matches no known shape.
var ErrInvalidID = errors.New("invalid annotation id")

var (
	pointPat  = regexp.MustCompile(`^(Pt)?(-?\d+)_(-?\d+)_(-?\d+)$`)
	linePat   = regexp.MustCompile(`^(-?\d+)_(-?\d+)_(-?\d+)-(-?\d+)_(-?\d+)_(-?\d+)-Line$`)
	lineKey   = regexp.MustCompile(`^Ln(-?\d+)(_-?\d+){5}$`)
	spherePat = regexp.MustCompile(`^(-?\d+)_(-?\d+)_(-?\d+)-(-?\d+)_(-?\d+)_(-?\d+)-Sphere$`)
	sphereKey = regexp.MustCompile(`^Sp(-?\d+)(_-?\d+){5}$`)
	userPat   = regexp.MustCompile(`^(.*)\[user:(.*)\]$`)
)

// TypeOf classifies an id string into its geometric discriminant. A family B
// authored suffix ("[user:alice]") is stripped before classification. Any id
// that matches no known shape is GeometryInvalid; the operation that produced
// such an id must fail with ErrInvalidID.
func TypeOf(id string) Geometry {
	if key, _, ok := ParseID(id); ok {
		id = key
	}
	switch {
	case pointPat.MatchString(id):
		return GeometryPoint
	case linePat.MatchString(id), lineKey.MatchString(id):
		return GeometryLine
	case spherePat.MatchString(id), sphereKey.MatchString(id):
		return GeometrySphere
	default:
		return GeometryInvalid
	}
}

// DeriveKey computes the storage key from rounded integer coordinates. An
// explicit Key assigned by a prior server round-trip is authoritative and
// returned unchanged.
func DeriveKey(a Annotation) string {
	if a.Key != "" {
		return a.Key
	}
	p := a.RoundedA()
	q := a.RoundedB()
	switch a.Geometry {
	case GeometryPoint:
		return fmt.Sprintf("Pt%d_%d_%d", p[0], p[1], p[2])
	case GeometryLine:
		return fmt.Sprintf("Ln%d_%d_%d_%d_%d_%d", p[0], p[1], p[2], q[0], q[1], q[2])
	case GeometrySphere:
		return fmt.Sprintf("Sp%d_%d_%d_%d_%d_%d", p[0], p[1], p[2], q[0], q[1], q[2])
	default:
		return ""
	}
}

// DeriveID computes the canonical id for a backend family. Family A identity
// is purely geometric (the key alone). Family B embeds authorship so two
// users annotating the same coordinate do not collide.
func DeriveID(f Family, a Annotation) string {
	key := DeriveKey(a)
	if key == "" {
		return ""
	}
	if f == FamilyB {
		if user := a.User(); user != "" {
			return fmt.Sprintf("%s[user:%s]", key, user)
		}
	}
	return key
}

// ParseID splits a family B composed id back into key and user. It reports
// ok=false for ids without an authored suffix.
func ParseID(id string) (key, user string, ok bool) {
	m := userPat.FindStringSubmatch(id)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// KeyOf returns the storage key portion of an id, stripping any authored
// suffix. Ids without a suffix are returned unchanged.
func KeyOf(id string) string {
	if key, _, ok := ParseID(id); ok {
		return key
	}
	return id
}

// EndpointsFromKey recovers both endpoints encoded in a line or sphere key,
// in either the "Ln1_2_3_4_5_6" or the "1_2_3-4_5_6-Line" form.
func EndpointsFromKey(key string) (a, b [3]float64, ok bool) {
	var m []string
	switch {
	case linePat.MatchString(key):
		m = linePat.FindStringSubmatch(key)
	case spherePat.MatchString(key):
		m = spherePat.FindStringSubmatch(key)
	case lineKey.MatchString(key) || sphereKey.MatchString(key):
		var parts [6]int64
		if _, err := fmt.Sscanf(key[2:], "%d_%d_%d_%d_%d_%d",
			&parts[0], &parts[1], &parts[2], &parts[3], &parts[4], &parts[5]); err != nil {
			return a, b, false
		}
		for i := 0; i < 3; i++ {
			a[i] = float64(parts[i])
			b[i] = float64(parts[i+3])
		}
		return a, b, true
	default:
		return a, b, false
	}
	for i := 0; i < 3; i++ {
		if _, err := fmt.Sscanf(m[i+1], "%f", &a[i]); err != nil {
			return a, b, false
		}
		if _, err := fmt.Sscanf(m[i+4], "%f", &b[i]); err != nil {
			return a, b, false
		}
	}
	return a, b, true
}

// PointFromKey recovers the position encoded in a bare "x_y_z" or prefixed
// "Pt..." point key. Family A v1 payloads may omit the position entirely and
// rely on this recovery.
func PointFromKey(key string) ([3]float64, bool) {
	m := pointPat.FindStringSubmatch(key)
	if m == nil {
		return [3]float64{}, false
	}
	var v [3]float64
	for i := 0; i < 3; i++ {
		if _, err := fmt.Sscanf(m[i+2], "%f", &v[i]); err != nil {
			return [3]float64{}, false
		}
	}
	return v, true
}
