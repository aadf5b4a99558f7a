package oauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWWWAuthenticate(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   []WWWAuthenticateChallenge
	}{
		{
			name:   "bearer with quoted parameters",
			header: `Bearer realm="example", resource_metadata="https://api.example.com/.well-known/oauth-protected-resource"`,
			want: []WWWAuthenticateChallenge{{
				Scheme: "Bearer",
				Parameters: map[string]string{
					"realm":             "example",
					"resource_metadata": "https://api.example.com/.well-known/oauth-protected-resource",
				},
			}},
		},
		{
			name:   "unquoted token values",
			header: `Bearer realm=api, error=invalid_token`,
			want: []WWWAuthenticateChallenge{{
				Scheme:     "Bearer",
				Parameters: map[string]string{"realm": "api", "error": "invalid_token"},
			}},
		},
		{
			name:   "scheme only",
			header: `Basic`,
			want:   []WWWAuthenticateChallenge{{Scheme: "Basic", Parameters: map[string]string{}}},
		},
		{
			name:   "comma inside quoted string",
			header: `Bearer realm="a, b", scope="read write"`,
			want: []WWWAuthenticateChallenge{{
				Scheme:     "Bearer",
				Parameters: map[string]string{"realm": "a, b", "scope": "read write"},
			}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			challenges, err := ParseWWWAuthenticate(test.header)
			require.NoError(t, err)
			assert.Equal(t, test.want, challenges)
		})
	}
}

func TestParseWWWAuthenticateEmpty(t *testing.T) {
	_, err := ParseWWWAuthenticate("")
	require.Error(t, err)
}

func TestFindResourceMetadataURL(t *testing.T) {
	challenges, err := ParseWWWAuthenticate(`Bearer resource_metadata="https://mcp.example.com/.well-known/oauth-protected-resource"`)
	require.NoError(t, err)
	assert.Equal(t, "https://mcp.example.com/.well-known/oauth-protected-resource", FindResourceMetadataURL(challenges))

	none, err := ParseWWWAuthenticate(`Bearer realm="example"`)
	require.NoError(t, err)
	assert.Empty(t, FindResourceMetadataURL(none))
}
