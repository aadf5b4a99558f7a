package oauth

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*(\s|$)`)
	paramRe  = regexp.MustCompile(`([a-zA-Z0-9_-]+)\s*=\s*(?:"([^"]*)"|([^,\s]+))`)
)

// ParseWWWAuthenticate parses a WWW-Authenticate header value (RFC 7235).
// Example: Bearer realm="example", resource_metadata="https://api.example.com/.well-known/oauth-protected-resource"
func ParseWWWAuthenticate(headerValue string) ([]WWWAuthenticateChallenge, error) {
	if strings.TrimSpace(headerValue) == "" {
		return nil, fmt.Errorf("empty WWW-Authenticate header")
	}

	var challenges []WWWAuthenticateChallenge
	var current *WWWAuthenticateChallenge

	for _, part := range splitOutsideQuotes(headerValue, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// A part that starts with a bare scheme token (not key=value) opens a
		// new challenge; anything else extends the current one.
		if schemeRe.MatchString(part) && !strings.Contains(strings.SplitN(part, " ", 2)[0], "=") {
			if current != nil {
				challenges = append(challenges, *current)
			}
			scheme, rest, _ := strings.Cut(part, " ")
			current = &WWWAuthenticateChallenge{
				Scheme:     scheme,
				Parameters: parseAuthParams(rest),
			}
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("malformed WWW-Authenticate header: parameters before any scheme")
		}
		for k, v := range parseAuthParams(part) {
			current.Parameters[k] = v
		}
	}
	if current != nil {
		challenges = append(challenges, *current)
	}

	if len(challenges) == 0 {
		return nil, fmt.Errorf("no challenges found in WWW-Authenticate header")
	}
	return challenges, nil
}

// parseAuthParams parses auth-param = auth-param-name "=" ( token | quoted-string )
func parseAuthParams(s string) map[string]string {
	params := make(map[string]string)
	for _, match := range paramRe.FindAllStringSubmatch(s, -1) {
		if match[2] != "" {
			params[match[1]] = match[2] // quoted-string
		} else {
			params[match[1]] = match[3] // token
		}
	}
	return params
}

// splitOutsideQuotes splits on the delimiter while respecting quoted strings.
func splitOutsideQuotes(s string, delimiter rune) []string {
	var result []string
	var current strings.Builder
	inQuotes := false

	for _, char := range s {
		switch {
		case char == '"':
			inQuotes = !inQuotes
			current.WriteRune(char)
		case char == delimiter && !inQuotes:
			result = append(result, current.String())
			current.Reset()
		default:
			current.WriteRune(char)
		}
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// FindResourceMetadataURL extracts the resource_metadata pointer from Bearer
// challenges (RFC 9728 Section 5.1).
func FindResourceMetadataURL(challenges []WWWAuthenticateChallenge) string {
	for _, challenge := range challenges {
		if strings.EqualFold(challenge.Scheme, "Bearer") {
			if u, ok := challenge.Parameters["resource_metadata"]; ok {
				return u
			}
		}
	}
	return ""
}
