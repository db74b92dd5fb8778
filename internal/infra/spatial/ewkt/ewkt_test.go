package ewkt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinyyxxx/Mindsim/internal/infra/spatial/ewkt"
	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

func TestEncodeZRoundTrip(t *testing.T) {
	in := domain.Vec3{X: 1.5, Y: -2.25, Z: 1e-9}
	srid, coords, err := ewkt.Decode(ewkt.EncodeZ(domain.DefaultSRID, in))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSRID, srid)
	require.Len(t, coords, 3)
	assert.InDelta(t, in.X, coords[0], 1e-9)
	assert.InDelta(t, in.Y, coords[1], 1e-9)
	assert.InDelta(t, in.Z, coords[2], 1e-9)
}

func TestDecodeToleratesZM(t *testing.T) {
	v, err := ewkt.DecodeVec3("SRID=4979;POINT ZM (1 2 3 42)")
	require.NoError(t, err)
	assert.Equal(t, domain.Vec3{X: 1, Y: 2, Z: 3}, v)
}

func TestDecodeVariants(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		srid  int
		count int
	}{
		{"zm encode", ewkt.EncodeZM(4979, domain.Vec3{X: 1, Y: 2, Z: 3}, 4), 4979, 4},
		{"no srid prefix", "POINT Z (7 8 9)", 0, 3},
		{"postgis spacing", "SRID=4979;POINT Z(0.5 0.25 -1)", 4979, 3},
		{"2d point", "SRID=4326;POINT(10 20)", 4326, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srid, coords, err := ewkt.Decode(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.srid, srid)
			assert.Len(t, coords, tc.count)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"SRID=x;POINT Z (1 2 3)",
		"SRID=4979;POINT Z 1 2 3",
		"SRID=4979;LINESTRING (0 0, 1 1)",
		"SRID=4979;POINT Z (1 2 3 4 5)",
		"SRID=4979;POINT Z (1 two 3)",
	} {
		_, _, err := ewkt.Decode(in)
		assert.Error(t, err, "input %q", in)
	}
}
