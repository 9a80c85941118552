package worker

import "github.com/tidwall/match"

// MatchVars filters variable names against a shell-style glob pattern
// (e.g. "df_*", "result?"), used by operators and tests to narrow down the
// variable names reported by exec without depending on the interpreter's
// own filtering. SHOW_VARS output is a single preformatted string and is
// not filtered here.
func MatchVars(names []string, pattern string) []string {
	if pattern == "" {
		return names
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if match.Match(n, pattern) {
			out = append(out, n)
		}
	}
	return out
}
