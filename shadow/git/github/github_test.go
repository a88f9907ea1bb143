package github_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/shadowsync/shadow/git"
	ghprov "github.com/byte4ever/shadowsync/shadow/git/github"
)

func TestNewProvider_valid(t *testing.T) {
	t.Parallel()

	pv, err := ghprov.NewProvider(ghprov.Config{
		AccessToken: "tok",
	})

	require.NoError(t, err)
	assert.NotNil(t, pv)
}

func TestNewProvider_missing_token(t *testing.T) {
	t.Parallel()

	pv, err := ghprov.NewProvider(ghprov.Config{})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "access token")
}

func TestNewProvider_enterprise(t *testing.T) {
	t.Parallel()

	pv, err := ghprov.NewProvider(ghprov.Config{
		AccessToken:    "tok",
		EnterpriseHost: "git.corp.example.com",
	})

	require.NoError(t, err)
	assert.NotNil(t, pv)
}

func TestProvider_CreatePR(t *testing.T) {
	t.Parallel()

	var (
		gotPath    string
		gotMethod  string
		gotVersion string
		gotAuth    string
		gotBody    map[string]string
	)

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotMethod = r.Method
			gotVersion = r.Header.Get("X-GitHub-Api-Version")
			gotAuth = r.Header.Get("Authorization")

			_ = json.NewDecoder(r.Body).Decode(&gotBody)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{
				"number": 7,
				"html_url": "https://github.com/acme-shadow/app/pull/7"
			}`))
		},
	))
	defer srv.Close()

	pv, err := ghprov.NewProvider(ghprov.Config{
		AccessToken: "tok",
		APIURL:      srv.URL,
	})
	require.NoError(t, err)

	url, err := pv.CreatePR(
		context.Background(),
		git.PullRequestSpec{
			Owner:     "acme-shadow",
			Repo:      "app",
			Title:     "Fix bug",
			Head:      "fix-1",
			HeadOwner: "acme-shadow",
			Base:      "main",
			Body:      "opened in acme/app",
		},
	)
	require.NoError(t, err)

	assert.Equal(
		t, "https://github.com/acme-shadow/app/pull/7", url,
	)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/repos/acme-shadow/app/pulls", gotPath)
	assert.Equal(t, "2022-11-28", gotVersion)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, map[string]string{
		"title": "Fix bug",
		"head":  "acme-shadow:fix-1",
		"base":  "main",
		"body":  "opened in acme/app",
	}, gotBody)
}

func TestProvider_CreatePR_unqualified_head(t *testing.T) {
	t.Parallel()

	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"number": 1}`))
		},
	))
	defer srv.Close()

	pv, err := ghprov.NewProvider(ghprov.Config{
		AccessToken: "tok",
		APIURL:      srv.URL + "/",
	})
	require.NoError(t, err)

	_, err = pv.CreatePR(
		context.Background(),
		git.PullRequestSpec{
			Owner: "o", Repo: "r",
			Title: "t", Head: "fix-1", Base: "main",
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "fix-1", gotBody["head"])
}

func TestProvider_CreatePR_errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantStatus int
		wantMsg    string
	}{
		{
			name:   "already exists is reused",
			status: http.StatusUnprocessableEntity,
			body: `{
				"message": "Validation Failed",
				"errors": [{
					"resource": "PullRequest",
					"code": "custom",
					"message": "A pull request already exists for acme-shadow:fix-1."
				}]
			}`,
		},
		{
			name:   "invalid head",
			status: http.StatusUnprocessableEntity,
			body: `{
				"message": "Validation Failed",
				"errors": [{
					"resource": "PullRequest",
					"field": "head",
					"code": "invalid"
				}]
			}`,
			wantErr:    true,
			wantStatus: http.StatusUnprocessableEntity,
			wantMsg:    "Validation Failed; head invalid",
		},
		{
			name:       "missing repository",
			status:     http.StatusNotFound,
			body:       `{"message": "Not Found"}`,
			wantErr:    true,
			wantStatus: http.StatusNotFound,
			wantMsg:    "Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, _ *http.Request) {
					w.Header().Set(
						"Content-Type", "application/json",
					)
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(tt.body))
				},
			))
			defer srv.Close()

			pv, err := ghprov.NewProvider(ghprov.Config{
				AccessToken: "tok",
				APIURL:      srv.URL,
			})
			require.NoError(t, err)

			_, err = pv.CreatePR(
				context.Background(),
				git.PullRequestSpec{
					Owner: "acme-shadow", Repo: "app",
					Title: "t", Head: "fix-1", Base: "main",
				},
			)

			if !tt.wantErr {
				require.NoError(t, err)

				return
			}

			var apiErr *git.APIError

			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, "github", apiErr.Platform)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}
