package git_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/shadowsync/shadow/git"
)

func TestStaticToken_Credential(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token git.StaticToken
		url   string
		want  git.Credential
	}{
		{
			name:  "https gets default user",
			token: git.StaticToken{Token: "tok"},
			url:   "https://github.com/acme/app.git",
			want: git.Credential{
				Username: git.DefaultTokenUser,
				Password: "tok",
			},
		},
		{
			name: "custom user",
			token: git.StaticToken{
				Username: "bot", Token: "tok",
			},
			url: "https://github.com/acme/app.git",
			want: git.Credential{
				Username: "bot", Password: "tok",
			},
		},
		{
			name:  "local path is anonymous",
			token: git.StaticToken{Token: "tok"},
			url:   "/srv/git/app.git",
		},
		{
			name: "empty token is anonymous",
			url:  "https://github.com/acme/app.git",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.token.Credential(
				context.Background(), tt.url,
			)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCredential_GitEnv(t *testing.T) {
	t.Parallel()

	assert.Nil(t, git.Credential{}.GitEnv())

	env := git.Credential{
		Username: "x-access-token",
		Password: "s3cr3t",
	}.GitEnv()

	basic := base64.StdEncoding.EncodeToString(
		[]byte("x-access-token:s3cr3t"),
	)

	assert.Contains(t, env, "GIT_CONFIG_COUNT=1")
	assert.Contains(t, env, "GIT_CONFIG_KEY_0=http.extraHeader")
	assert.Contains(
		t, env,
		"GIT_CONFIG_VALUE_0=Authorization: Basic "+basic,
	)
}

func TestRemoteURL(t *testing.T) {
	t.Parallel()

	assert.Equal(
		t,
		"https://github.com/acme/app.git",
		git.RemoteURL("https://github.com/", "acme", "app"),
	)
	assert.Equal(
		t,
		"/srv/git/acme/app.git",
		git.RemoteURL("/srv/git", "acme", "app"),
	)
}
