package ghcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newGitHub(t *testing.T, token, scopes string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/user" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
			return
		}
		if scopes != "" {
			w.Header().Set("X-OAuth-Scopes", scopes)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"login":"octocat","id":1}`))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestCheckValidToken(t *testing.T) {
	ts := newGitHub(t, "ghp_good", "repo, read:org")
	c := New(ts.URL, 5*time.Second)

	id, err := c.Check(context.Background(), "ghp_good")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Login != "octocat" {
		t.Errorf("expected octocat, got %s", id.Login)
	}
	if len(id.Scopes) != 2 || id.Scopes[0] != "repo" {
		t.Errorf("unexpected scopes %v", id.Scopes)
	}
	if !id.CanOpenPullRequests() {
		t.Error("repo scope should allow pull requests")
	}
}

func TestCheckBadCredentials(t *testing.T) {
	ts := newGitHub(t, "ghp_good", "")
	c := New(ts.URL+"/", 5*time.Second)

	_, err := c.Check(context.Background(), "ghp_wrong")
	if !errors.Is(err, ErrBadCredentials) {
		t.Errorf("expected ErrBadCredentials, got %v", err)
	}
}

func TestCheckEnterpriseAPIRoot(t *testing.T) {
	ts := newGitHub(t, "ghp_good", "")
	c := New(ts.URL+"/api/v3/", 5*time.Second)

	id, err := c.Check(context.Background(), "ghp_good")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Login != "octocat" {
		t.Errorf("expected octocat, got %s", id.Login)
	}
}

func TestCheckEmptyToken(t *testing.T) {
	c := New("", time.Second)
	if _, err := c.Check(context.Background(), "  "); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestScopes(t *testing.T) {
	if !(Identity{}).CanOpenPullRequests() {
		t.Error("fine-grained tokens report no scopes and should pass")
	}
	if (Identity{Scopes: []string{"read:user"}}).CanOpenPullRequests() {
		t.Error("read:user alone cannot open pull requests")
	}
	if got := parseScopes(" repo , ,gist"); len(got) != 2 || got[1] != "gist" {
		t.Errorf("unexpected parsed scopes %v", got)
	}
}
