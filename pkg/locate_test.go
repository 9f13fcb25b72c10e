package pkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}
}

func TestFindLibraryLinux(t *testing.T) {
	home := t.TempDir()
	touch(t,
		filepath.Join(home, "lib", "libpython3.so"),
		filepath.Join(home, "lib", "libpython3.9.so.1.0"),
		filepath.Join(home, "lib", "libpython3.11.so.1.0"),
		filepath.Join(home, "lib", "libpython3.11.so"),
	)

	p, err := findLibrary("linux", home, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "lib", "libpython3.11.so"), p)

	p, err = findLibrary("linux", home, "3.9")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "lib", "libpython3.9.so.1.0"), p)
}

func TestFindLibraryDarwin(t *testing.T) {
	home := t.TempDir()
	touch(t, filepath.Join(home, "lib", "libpython3.12.dylib"))

	p, err := findLibrary("darwin", home, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "lib", "libpython3.12.dylib"), p)
}

func TestFindLibraryWindows(t *testing.T) {
	home := t.TempDir()
	touch(t,
		filepath.Join(home, "python3.dll"),
		filepath.Join(home, "python311.dll"),
	)

	p, err := findLibrary("windows", home, "3.11")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "python311.dll"), p)

	p, err = findLibrary("windows", home, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "python311.dll"), p)
}

func TestFindLibraryNotFound(t *testing.T) {
	home := t.TempDir()
	touch(t, filepath.Join(home, "lib", "libpython3.so"))

	_, err := findLibrary("linux", home, "")
	assert.ErrorIs(t, err, ErrLibraryNotFound)
}

func TestLibraryPatterns(t *testing.T) {
	assert.Equal(t, []string{"python312.dll"}, libraryPatterns("windows", "3.12"))
	assert.Equal(t, []string{"libpython3.*.dylib"}, libraryPatterns("darwin", ""))
	assert.Equal(t, []string{"libpython3.10.so", "libpython3.10.so.*"}, libraryPatterns("linux", "3.10"))
}
