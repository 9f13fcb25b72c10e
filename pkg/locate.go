package pkg

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

// matches the minor version in libpython3.11.so.1.0, libpython3.12.dylib, python311.dll
var libraryMinorRegex = regexp.MustCompile(`python3\.?(\d+)`)

// libraryPatterns returns glob patterns for the shared library of the given
// minor version ("3.11"), or of any version if version is empty.
func libraryPatterns(goos string, version string) []string {
	v := version
	if v == "" {
		v = "3.*"
	}
	switch goos {
	case "windows":
		return []string{"python" + strings.ReplaceAll(v, ".", "") + ".dll"}
	case "darwin":
		return []string{"libpython" + v + ".dylib"}
	default:
		return []string{"libpython" + v + ".so", "libpython" + v + ".so.*"}
	}
}

// librarySearchDirs returns the directories below home that may hold the
// shared library. conda and python-build-standalone layouts put it in lib/,
// Windows installs next to python.exe.
func librarySearchDirs(goos string, home string) []string {
	if goos == "windows" {
		return []string{home, filepath.Join(home, "DLLs")}
	}
	return []string{filepath.Join(home, "lib"), home}
}

// FindLibrary searches home for the CPython shared library. With an empty
// version the newest library found is returned.
func FindLibrary(home string, version string) (string, error) {
	return findLibrary(runtime.GOOS, home, version)
}

func findLibrary(goos string, home string, version string) (string, error) {
	type candidate struct {
		path  string
		minor int
	}
	var candidates []candidate
	seen := map[string]bool{}

	for _, dir := range librarySearchDirs(goos, home) {
		for _, pattern := range libraryPatterns(goos, version) {
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				return "", err
			}
			for _, m := range matches {
				if seen[m] {
					continue
				}
				seen[m] = true
				if st, err := os.Stat(m); err != nil || st.IsDir() {
					continue
				}
				sm := libraryMinorRegex.FindStringSubmatch(filepath.Base(m))
				if sm == nil {
					// the limited API forwarder (python3.dll, libpython3.so) lacks most symbols
					continue
				}
				minor, _ := strconv.Atoi(sm[1])
				candidates = append(candidates, candidate{path: m, minor: minor})
			}
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w in %s", ErrLibraryNotFound, home)
	}

	// newest minor first, then the shortest name (libpython3.11.so before libpython3.11.so.1.0)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].minor != candidates[j].minor {
			return candidates[i].minor > candidates[j].minor
		}
		return len(candidates[i].path) < len(candidates[j].path)
	})
	return candidates[0].path, nil
}
