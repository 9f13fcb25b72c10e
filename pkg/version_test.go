package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"3.11.9 (main, Apr  6 2024, 17:59:24) [GCC 11.4.0]", "3.11.9"},
		{"3.8.0 (default, Oct 14 2019, 21:29:03) \n[GCC 7.4.0]", "3.8.0"},
		{"3.13.0rc2 (main, Sep  9 2024, 22:55:42) [Clang 18.1.8 ]", "3.13.0-rc2"},
		{"3.14.0a1+ (heads/main:1234abcd, Oct 20 2024)", "3.14.0-a1"},
		{"3.12", "3.12.0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseVersion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestParseVersionInvalid(t *testing.T) {
	_, err := ParseVersion("PyPy 7.3")
	assert.ErrorContains(t, err, "failed to parse python version")
}

func TestMinimumVersion(t *testing.T) {
	v, err := ParseVersion("3.7.17 (default)")
	require.NoError(t, err)
	assert.True(t, v.LessThan(DefaultMinimumVersion))

	v, err = ParseVersion("3.13.0rc2")
	require.NoError(t, err)
	assert.False(t, v.LessThan(DefaultMinimumVersion))

	for _, s := range []string{"3.8.0a1", "3.8.0rc1 (default, Oct  1 2019)", "3.8.0"} {
		v, err = ParseVersion(s)
		require.NoError(t, err)
		assert.False(t, v.LessThan(DefaultMinimumVersion), s)
	}
}
