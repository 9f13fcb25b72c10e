package pkg

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// matches "3.12.1", "3.13.0rc2", "3.14.0a1+"
var versionRegex = regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?([a-z]+\d*)?`)

// ParseVersion parses the leading version token of a Py_GetVersion string,
// e.g. "3.11.9 (main, Apr  6 2024, 17:59:24) [GCC 11.4.0]".
func ParseVersion(s string) (*semver.Version, error) {
	s = strings.TrimSpace(s)
	m := versionRegex.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("failed to parse python version %q", s)
	}
	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	v := fmt.Sprintf("%s.%s.%s", m[1], m[2], patch)
	if m[4] != "" {
		v += "-" + m[4]
	}
	return semver.NewVersion(v)
}
