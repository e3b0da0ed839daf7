package tracker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type recorded struct {
	Method string
	Path   string
	Body   string
}

type fakeGitHub struct {
	mu       sync.Mutex
	requests []recorded
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{r.Method, r.URL.Path, string(body)})
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer secret-token" {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/repos/octo/chess/issues/7":
		w.Write([]byte(`{"number":7,"title":"Chess: Move E2 to E4","state":"open",
			"user":{"login":"alice"},"labels":[{"name":"bug"}]}`))
	case r.Method == http.MethodGet:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found","documentation_url":"https://docs.github.com"}`))
	default:
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}
}

func newTestClient(t *testing.T, token string) (*GitHub, *fakeGitHub) {
	t.Helper()
	fake := &fakeGitHub{}
	srv := httptest.NewTLSServer(fake)
	t.Cleanup(srv.Close)

	gh, err := NewGitHub(GitHubConfig{
		BaseURL:    srv.URL,
		Repository: "octo/chess",
		Token:      token,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return gh, fake
}

func TestNewGitHubValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  GitHubConfig
	}{
		{"plain http", GitHubConfig{BaseURL: "http://example.com", Repository: "o/r", Token: "t"}},
		{"no token", GitHubConfig{Repository: "o/r"}},
		{"bad slug", GitHubConfig{Repository: "chess", Token: "t"}},
		{"empty repo", GitHubConfig{Repository: "o/", Token: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGitHub(tt.cfg); err == nil {
				t.Error("NewGitHub succeeded")
			}
		})
	}
}

func TestGitHubIssue(t *testing.T) {
	gh, _ := newTestClient(t, "secret-token")

	issue, err := gh.Issue(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if issue.Title != "Chess: Move E2 to E4" || issue.Author != "alice" || issue.State != "open" {
		t.Errorf("issue = %+v", issue)
	}
	if len(issue.Labels) != 1 || issue.Labels[0] != "bug" {
		t.Errorf("labels = %v", issue.Labels)
	}

	_, err = gh.Issue(context.Background(), 8)
	if !IsNotFound(err) {
		t.Errorf("missing issue error = %v", err)
	}
}

func TestGitHubBadCredentials(t *testing.T) {
	gh, _ := newTestClient(t, "wrong")
	err := gh.Comment(context.Background(), 7, "hi")
	if err == nil || !strings.Contains(err.Error(), "Bad credentials") {
		t.Errorf("error = %v", err)
	}
}

func TestGitHubCloseAddsLabelsFirst(t *testing.T) {
	gh, fake := newTestClient(t, "secret-token")
	ctx := context.Background()

	if err := gh.Comment(ctx, 7, "@alice Done!"); err != nil {
		t.Fatal(err)
	}
	if err := gh.Close(ctx, 7, []string{"White", "⚔️ Capture!"}); err != nil {
		t.Fatal(err)
	}

	if len(fake.requests) != 3 {
		t.Fatalf("requests = %+v", fake.requests)
	}
	comment, labels, patch := fake.requests[0], fake.requests[1], fake.requests[2]

	if comment.Method != http.MethodPost || comment.Path != "/repos/octo/chess/issues/7/comments" {
		t.Errorf("comment request = %+v", comment)
	}
	var cbody map[string]string
	json.Unmarshal([]byte(comment.Body), &cbody)
	if cbody["body"] != "@alice Done!" {
		t.Errorf("comment body = %q", comment.Body)
	}

	if labels.Path != "/repos/octo/chess/issues/7/labels" {
		t.Errorf("labels request = %+v", labels)
	}
	var lbody map[string][]string
	json.Unmarshal([]byte(labels.Body), &lbody)
	if strings.Join(lbody["labels"], "|") != "White|⚔️ Capture!" {
		t.Errorf("labels body = %q", labels.Body)
	}

	if patch.Method != http.MethodPatch || patch.Path != "/repos/octo/chess/issues/7" {
		t.Errorf("close request = %+v", patch)
	}
	if !strings.Contains(patch.Body, `"state":"closed"`) {
		t.Errorf("close body = %q", patch.Body)
	}
}

func TestGitHubCloseWithoutLabels(t *testing.T) {
	gh, fake := newTestClient(t, "secret-token")
	if err := gh.Close(context.Background(), 7, nil); err != nil {
		t.Fatal(err)
	}
	if len(fake.requests) != 1 || fake.requests[0].Method != http.MethodPatch {
		t.Errorf("requests = %+v", fake.requests)
	}
}
