package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/shadowsync/shadow/filter"
)

func TestPolicy_Allows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		repo       string
		whitelist  []string
		exceptions []string
		want       filter.Decision
	}{
		{
			name: "empty policy allows all",
			repo: "anything",
			want: filter.Decision{Allowed: true},
		},
		{
			name:      "whitelist match",
			repo:      "app-web",
			whitelist: []string{"^app-.*"},
			want:      filter.Decision{Allowed: true},
		},
		{
			name:      "whitelist miss",
			repo:      "secrets-repo",
			whitelist: []string{"^app-.*"},
			want: filter.Decision{
				Reason: filter.ReasonWhitelist,
			},
		},
		{
			name:       "whitelist miss wins over exceptions",
			repo:       "secrets-repo",
			whitelist:  []string{"^app-.*"},
			exceptions: []string{"secrets"},
			want: filter.Decision{
				Reason: filter.ReasonWhitelist,
			},
		},
		{
			name:       "exception beats whitelist",
			repo:       "app-secrets",
			whitelist:  []string{"^app-"},
			exceptions: []string{"nomatch", "secrets$"},
			want: filter.Decision{
				Reason:  filter.ReasonExceptions,
				Pattern: "secrets$",
			},
		},
		{
			name:       "exceptions only",
			repo:       "legacy-tool",
			exceptions: []string{"^legacy"},
			want: filter.Decision{
				Reason:  filter.ReasonExceptions,
				Pattern: "^legacy",
			},
		},
		{
			name:      "substring semantics",
			repo:      "my-app-service",
			whitelist: []string{"app"},
			want:      filter.Decision{Allowed: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := filter.Compile(
				tt.whitelist, tt.exceptions,
			)
			require.NoError(t, err)

			assert.Equal(t, tt.want, p.Allows(tt.repo))
		})
	}
}

func TestCompile_invalid_pattern(t *testing.T) {
	t.Parallel()

	_, err := filter.Compile([]string{"("}, nil)
	require.ErrorIs(t, err, filter.ErrConfig)

	_, err = filter.Compile(nil, []string{"[a-"})
	require.ErrorIs(t, err, filter.ErrConfig)
}

func TestAllowed(t *testing.T) {
	t.Parallel()

	ok, err := filter.Allowed(
		"app-web", []string{"^app-"}, nil,
	)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = filter.Allowed(
		"app-web", []string{"("}, nil,
	)
	require.ErrorIs(t, err, filter.ErrConfig)
	assert.False(t, ok)
}

func TestPolicy_nil_allows(t *testing.T) {
	t.Parallel()

	var p *filter.Policy

	assert.True(t, p.Allows("x").Allowed)
}

func TestPolicy_raw_patterns(t *testing.T) {
	t.Parallel()

	p, err := filter.Compile(
		[]string{"a", "b"}, []string{"c"},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, p.Whitelist())
	assert.Equal(t, []string{"c"}, p.Exceptions())
}
