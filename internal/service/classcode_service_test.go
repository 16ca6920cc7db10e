package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := NewCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected rune %q in %s", r, code)
		}
		seen[code] = true
	}
	// 32^6 possibilities; 200 draws colliding would point at a broken source.
	assert.Greater(t, len(seen), 190)
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		valid bool
	}{
		{name: "canonical", in: "K7QX2M", want: "K7QX2M", valid: true},
		{name: "lower case", in: "k7qx2m", want: "K7QX2M", valid: true},
		{name: "spaces and dash", in: " k7q-x2m ", want: "K7QX2M", valid: true},
		{name: "too short", in: "K7QX2", valid: false},
		{name: "too long", in: "K7QX2MM", valid: false},
		{name: "ambiguous zero", in: "K7QX20", valid: false},
		{name: "ambiguous letter O", in: "K7QXOM", valid: false},
		{name: "symbols", in: "K7QX2!", valid: false},
		{name: "empty", in: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeCode(tt.in)
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAlphabetDividesByte(t *testing.T) {
	assert.Equal(t, 0, 256%len(codeAlphabet))
}
