package errcapture

import "regexp"

const redactedPlaceholder = "[REDACTED]"

// Secret-shaped values are replaced before a message is stored or displayed.
// Patterns cover key/value pairs, bearer tokens and connection-string
// credentials.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)((?:password|passwd|pwd|secret|token|api[_-]?key|access[_-]?key|private[_-]?key|authorization|credentials?)["']?\s*[:=]\s*)("[^"]*"|'[^']*'|\S+)`),
	regexp.MustCompile(`(?i)(bearer\s+)[a-z0-9._~+/=-]+`),
	regexp.MustCompile(`(?i)([a-z][a-z0-9+.-]*://[^:/\s]+:)[^@/\s]+(@)`),
}

// Redact replaces secret-shaped values in s
func Redact(s string) string {
	for i, p := range secretPatterns {
		switch i {
		case 2:
			// Keep the username, drop the password
			s = p.ReplaceAllString(s, "${1}"+redactedPlaceholder+"${2}")
		default:
			s = p.ReplaceAllString(s, "${1}"+redactedPlaceholder)
		}
	}
	return s
}

// RedactVariables redacts every string value in a details map, in place on a
// copy
func RedactVariables(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = Redact(s)
			continue
		}
		out[k] = v
	}
	return out
}
