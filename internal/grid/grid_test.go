package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddr(t *testing.T) {
	tests := []struct {
		input   string
		want    Addr
		wantErr bool
	}{
		{"A1", Addr{0, 0}, false},
		{"B12", Addr{11, 1}, false},
		{"b12", Addr{11, 1}, false},
		{"Z3", Addr{2, 25}, false},
		{"AA10", Addr{9, 26}, false},
		{"$C$4", Addr{3, 2}, false},
		{"C$4", Addr{3, 2}, false},
		{"", Addr{}, true},
		{"12", Addr{}, true},
		{"AB", Addr{}, true},
		{"A0", Addr{}, true},
		{"A1B", Addr{}, true},
		{"1A", Addr{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAddr(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for r := 0; r < 120; r++ {
		for c := 0; c < 60; c++ {
			name := FormatAddr(r, c)
			got, err := ParseAddr(name)
			require.NoError(t, err, name)
			assert.Equal(t, Addr{Row: r, Col: c}, got, name)
		}
	}
}

func TestColToName(t *testing.T) {
	assert.Equal(t, "A", ColToName(0))
	assert.Equal(t, "Z", ColToName(25))
	assert.Equal(t, "AA", ColToName(26))
	assert.Equal(t, "XFD", ColToName(MaxCols-1))
	assert.Equal(t, "?", ColToName(-1))
	assert.Equal(t, "B12", Addr{Row: 11, Col: 1}.String())
}

func TestParseRefKeepsMarkers(t *testing.T) {
	ref, err := ParseRef("$A7")
	require.NoError(t, err)
	assert.True(t, ref.AbsCol)
	assert.False(t, ref.AbsRow)
	assert.Equal(t, "$A7", ref.String())

	ref, err = ParseRef("b$2")
	require.NoError(t, err)
	assert.Equal(t, "B$2", ref.String())
}

func TestExpandRange(t *testing.T) {
	got, err := ExpandRange("A1", "A1")
	require.NoError(t, err)
	assert.Equal(t, []Addr{{0, 0}}, got)

	got, err = ExpandRange("A1", "B2")
	require.NoError(t, err)
	assert.Equal(t, []Addr{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, got)

	// reversed corners normalise to the same box
	rev, err := ExpandRange("B2", "A1")
	require.NoError(t, err)
	assert.Equal(t, got, rev)

	_, err = ExpandRange("A1", "nope")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddrLess(t *testing.T) {
	assert.True(t, Addr{0, 5}.Less(Addr{1, 0}))
	assert.True(t, Addr{1, 0}.Less(Addr{1, 1}))
	assert.False(t, Addr{1, 1}.Less(Addr{1, 1}))
}
