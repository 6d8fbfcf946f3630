package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandStrict expands ${VAR} references in s from the environment.
//
// Unlike os.ExpandEnv, a referenced variable that is missing from the
// environment is an error rather than an empty substitution, so a
// misconfigured token fails loudly at startup instead of producing silent
// unauthorized requests. `$$` escapes a literal `$`.
func ExpandStrict(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	const dollarSentinel = "\x00RETAILFETCH_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollarSentinel)

	missing := map[string]struct{}{}
	expanded := varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		value, ok := os.LookupEnv(name)
		if !ok {
			missing[name] = struct{}{}
			return match
		}
		return value
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(names, ", "))
	}

	return strings.ReplaceAll(expanded, dollarSentinel, "$"), nil
}
