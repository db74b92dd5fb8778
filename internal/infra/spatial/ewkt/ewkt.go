// Package ewkt encodes and decodes the extended well-known-text point
// format used by the spatial coordinate repository:
//
//	SRID=<srid>;POINT Z (<x> <y> <z>)
//	SRID=<srid>;POINT ZM (<x> <y> <z> <m>)
//
// The decoder parses exactly the numeric tokens between the parentheses, in
// order, and tolerates both 3-component and 4-component encodings.
package ewkt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// EncodeZ renders a 3D point.
func EncodeZ(srid int, v domain.Vec3) string {
	return fmt.Sprintf("SRID=%d;POINT Z (%s %s %s)", srid, ftoa(v.X), ftoa(v.Y), ftoa(v.Z))
}

// EncodeZM renders a 3D point with a linear-referencing measure.
func EncodeZM(srid int, v domain.Vec3, m float64) string {
	return fmt.Sprintf("SRID=%d;POINT ZM (%s %s %s %s)", srid, ftoa(v.X), ftoa(v.Y), ftoa(v.Z), ftoa(m))
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Decode parses an EWKT point literal and returns its SRID and coordinate
// tokens. Between 2 and 4 coordinates are accepted.
func Decode(s string) (srid int, coords []float64, err error) {
	rest := strings.TrimSpace(s)
	if prefix, tail, ok := strings.Cut(rest, ";"); ok && strings.HasPrefix(strings.ToUpper(prefix), "SRID=") {
		srid, err = strconv.Atoi(strings.TrimSpace(prefix[len("SRID="):]))
		if err != nil {
			return 0, nil, fmt.Errorf("ewkt: bad srid in %q: %w", s, err)
		}
		rest = tail
	}
	open := strings.IndexByte(rest, '(')
	close := strings.LastIndexByte(rest, ')')
	if open < 0 || close < open {
		return 0, nil, fmt.Errorf("ewkt: no coordinate list in %q", s)
	}
	if kind := strings.ToUpper(strings.TrimSpace(rest[:open])); !strings.HasPrefix(kind, "POINT") {
		return 0, nil, fmt.Errorf("ewkt: unsupported geometry %q", kind)
	}
	fields := strings.Fields(rest[open+1 : close])
	if len(fields) < 2 || len(fields) > 4 {
		return 0, nil, fmt.Errorf("ewkt: expected 2-4 coordinates in %q, got %d", s, len(fields))
	}
	coords = make([]float64, len(fields))
	for i, f := range fields {
		coords[i], err = strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("ewkt: bad coordinate %q in %q: %w", f, s, err)
		}
	}
	return srid, coords, nil
}

// DecodeVec3 decodes a point and truncates it to its first three
// coordinates, dropping any trailing measure. Points with fewer than three
// coordinates fill the remainder with zeros.
func DecodeVec3(s string) (domain.Vec3, error) {
	_, coords, err := Decode(s)
	if err != nil {
		return domain.Vec3{}, err
	}
	var v domain.Vec3
	if len(coords) > 0 {
		v.X = coords[0]
	}
	if len(coords) > 1 {
		v.Y = coords[1]
	}
	if len(coords) > 2 {
		v.Z = coords[2]
	}
	return v, nil
}
