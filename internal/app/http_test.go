package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"versebook/api/internal/auth"
	"versebook/api/internal/config"
	"versebook/api/internal/store"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, fs *fakeStore, cfg config.Config) *httptest.Server {
	t.Helper()
	cfg.TokenSecret = testSecret
	server := httptest.NewServer(NewHTTPServer(newTestService(fs, cfg), testSecret, "*").Handler())
	t.Cleanup(server.Close)
	return server
}

func userToken(t *testing.T, userID, name string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(testSecret), auth.Claims{
		Sub:  userID,
		Name: name,
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, method, url, token, anonToken string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if anonToken != "" {
		req.Header.Set("X-Anon-Token", anonToken)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, &fakeStore{}, config.Config{})
	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/health", "", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if payload["ok"] != true {
		t.Fatalf("payload: %v", payload)
	}
}

func TestGetSongBySlug(t *testing.T) {
	server := newTestServer(t, songStore(testSong()), config.Config{})
	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/songs/tian-mi-mi", "", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if payload["titleZh"] != "甜蜜蜜" {
		t.Fatalf("payload: %v", payload)
	}

	resp, payload = doJSON(t, http.MethodGet, server.URL+"/api/songs/unknown", "", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing song status %d", resp.StatusCode)
	}
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("payload: %v", payload)
	}
}

func TestInvalidBearerTokenRejected(t *testing.T) {
	server := newTestServer(t, songStore(testSong()), config.Config{})
	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/songs/tian-mi-mi", "garbage", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("payload: %v", payload)
	}
}

func TestAnonymousLineVoteOverHTTP(t *testing.T) {
	ledger := newFakeLedger()
	fs := songStore(testSong())
	fs.toggleVoteFn = func(_ context.Context, actorKey, targetKind, targetID string) (bool, error) {
		return ledger.toggle(actorKey, targetKind, targetID), nil
	}
	fs.countVotesFn = func(_ context.Context, targetKind, targetID string) (int, error) {
		return ledger.count(targetKind, targetID), nil
	}
	server := newTestServer(t, fs, config.Config{})

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/songs/tian-mi-mi/lines/0/vote", "", "device-42", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, payload)
	}
	if payload["voted"] != true || payload["votes"] != float64(1) {
		t.Fatalf("payload: %v", payload)
	}

	resp, payload = doJSON(t, http.MethodPost, server.URL+"/api/songs/tian-mi-mi/lines/0/vote", "", "device-42", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second toggle status %d", resp.StatusCode)
	}
	if payload["voted"] != false || payload["votes"] != float64(0) {
		t.Fatalf("second toggle payload: %v", payload)
	}
}

func TestVoteWithoutIdentityRejected(t *testing.T) {
	server := newTestServer(t, songStore(testSong()), config.Config{})
	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/songs/tian-mi-mi/lines/0/vote", "", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("payload: %v", payload)
	}
}

func TestProposeTranslationOverHTTP(t *testing.T) {
	var inserted store.Translation
	fs := songStore(testSong())
	fs.insertTranslationFn = func(_ context.Context, item store.Translation) error {
		inserted = item
		return nil
	}
	server := newTestServer(t, fs, config.Config{})

	token := userToken(t, "u1", "Mei")
	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/songs/tian-mi-mi/lines/1/translations", token, "",
		map[string]any{"content": "Your smile is honey-sweet"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d: %v", resp.StatusCode, payload)
	}
	if inserted.SongID != "song_1" || inserted.LineIndex != 1 {
		t.Fatalf("inserted: %+v", inserted)
	}
	if inserted.AuthorKey != "user:u1" {
		t.Fatalf("author key: %q", inserted.AuthorKey)
	}
	if payload["content"] != "Your smile is honey-sweet" {
		t.Fatalf("payload: %v", payload)
	}
}

func TestLineIndexMustBeNumeric(t *testing.T) {
	server := newTestServer(t, songStore(testSong()), config.Config{})
	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/songs/tian-mi-mi/lines/abc", "", "", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("payload: %v", payload)
	}
}

func TestModerationRoutesGated(t *testing.T) {
	server := newTestServer(t, &fakeStore{}, config.Config{Moderators: []string{"mod"}})

	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/moderation/submissions", userToken(t, "u1", "Mei"), "", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-moderator status %d", resp.StatusCode)
	}

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/moderation/submissions", userToken(t, "mod", "Mod"), "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("moderator status %d: %v", resp.StatusCode, payload)
	}
}

func TestApproveOverHTTP(t *testing.T) {
	var deleted string
	fs := &fakeStore{
		getSubmissionFn: func(context.Context, string) (store.Submission, error) {
			return store.Submission{
				ID:            "sub_1",
				Status:        store.SubmissionPending,
				Slug:          "you-dian-tian",
				TitleZH:       "有点甜",
				LyricsChinese: "是你让我看见干枯沙漠开出花",
			}, nil
		},
		deleteSubmissionFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	server := newTestServer(t, fs, config.Config{Moderators: []string{"mod"}})

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/moderation/submissions/sub_1/approve", userToken(t, "mod", "Mod"), "", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, payload)
	}
	if payload["titleZh"] != "有点甜" {
		t.Fatalf("payload: %v", payload)
	}
	if deleted != "sub_1" {
		t.Fatalf("submission not cleaned up, deleted=%q", deleted)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	server := newTestServer(t, &fakeStore{}, config.Config{})
	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/nope", "", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("payload: %v", payload)
	}
}
