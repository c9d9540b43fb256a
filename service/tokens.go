package service

import "regexp"

// tokenPattern matches {{merge.field}} placeholders inside text templates
// and image sources. Whitespace inside the braces is tolerated.
var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// extractTokens returns the merge-field keys referenced by s, in order of
// appearance, duplicates preserved.
func extractTokens(s string) []string {
	matches := tokenPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, m[1])
	}
	return keys
}

// substituteTokens replaces every {{key}} whose key exists in context with
// its resolved value. Unknown keys are left untouched; validation has
// already rejected payloads referencing keys outside the registry.
func substituteTokens(s string, context map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		key := tokenPattern.FindStringSubmatch(tok)[1]
		if val, ok := context[key]; ok {
			return val
		}
		return tok
	})
}
