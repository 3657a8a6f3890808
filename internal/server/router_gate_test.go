package server

import (
	contextpkg "context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/unihubs/campushub/backend/internal/auth"
)

func decodeGateResponse(t *testing.T, body []byte) (string, string) {
	t.Helper()
	var payload struct {
		Error    string `json:"error"`
		Redirect string `json:"redirect"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return payload.Error, payload.Redirect
}

func TestGateRejectsAnonymousHubListing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t, nil)

	recorder := env.do(t, http.MethodGet, "/hubs", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous request, got %d", recorder.Code)
	}
}

func TestGateRedirectsUnsignedPrincipalToSignup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t, nil)
	token := env.tokenFor(t, auth.Principal{UID: "fresh-user", Email: "fresh@gmail.com"})

	recorder := env.do(t, http.MethodPost, "/hubs", token, `{"name":"n","description":"d","category":"c"}`)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 before signup, got %d", recorder.Code)
	}
	errLabel, redirect := decodeGateResponse(t, recorder.Body.Bytes())
	if errLabel != "requires_signup" || redirect != "/signup" {
		t.Fatalf("unexpected gate response: %s / %s", errLabel, redirect)
	}
}

func TestGateRedirectsNonMemberToHubPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t, nil)

	owner := env.mustProfile(t, "owner-1", "hubmaster")
	outsider := env.mustProfile(t, "outsider-1", "passerby")
	hub, err := env.hubs.CreateHub(contextpkg.Background(), owner, "Algo Study", "desc", "스터디")
	if err != nil {
		t.Fatalf("failed to create hub: %v", err)
	}

	token := env.tokenFor(t, auth.Principal{UID: outsider.UID})
	recorder := env.do(t, http.MethodPost, "/hubs/"+hub.ID+"/posts", token, `{"title":"t","content":"c"}`)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member post, got %d", recorder.Code)
	}
	errLabel, redirect := decodeGateResponse(t, recorder.Body.Bytes())
	if errLabel != "requires_membership" || redirect != "/hubs/"+hub.ID {
		t.Fatalf("unexpected gate response: %s / %s", errLabel, redirect)
	}
}

func TestGateRejectsNonOwnerHubDeletion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t, nil)

	owner := env.mustProfile(t, "owner-1", "hubmaster")
	member := env.mustProfile(t, "member-1", "joiner")
	hub, err := env.hubs.CreateHub(contextpkg.Background(), owner, "Algo Study", "desc", "스터디")
	if err != nil {
		t.Fatalf("failed to create hub: %v", err)
	}
	if _, err := env.hubs.JoinHub(contextpkg.Background(), member.UID, hub.ID); err != nil {
		t.Fatalf("failed to join hub: %v", err)
	}

	token := env.tokenFor(t, auth.Principal{UID: member.UID})
	recorder := env.do(t, http.MethodDelete, "/hubs/"+hub.ID, token, "")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner delete, got %d", recorder.Code)
	}
	errLabel, redirect := decodeGateResponse(t, recorder.Body.Bytes())
	if errLabel != "requires_ownership" || redirect != "/hubs/"+hub.ID {
		t.Fatalf("unexpected gate response: %s / %s", errLabel, redirect)
	}
}

func TestMemberCanPostOnHubBoard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t, nil)

	owner := env.mustProfile(t, "owner-1", "hubmaster")
	member := env.mustProfile(t, "member-1", "joiner")
	hub, err := env.hubs.CreateHub(contextpkg.Background(), owner, "Algo Study", "desc", "스터디")
	if err != nil {
		t.Fatalf("failed to create hub: %v", err)
	}
	if _, err := env.hubs.JoinHub(contextpkg.Background(), member.UID, hub.ID); err != nil {
		t.Fatalf("failed to join hub: %v", err)
	}

	token := env.tokenFor(t, auth.Principal{UID: member.UID})
	recorder := env.do(t, http.MethodPost, "/hubs/"+hub.ID+"/posts", token, `{"title":"Hi","content":"body"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected member post to succeed, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var post struct {
		AuthorName string `json:"authorName"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &post); err != nil {
		t.Fatalf("failed to decode post: %v", err)
	}
	if post.AuthorName != "joiner" {
		t.Fatalf("expected author nickname snapshot, got %q", post.AuthorName)
	}
}

func TestCurrentProfileProbeSignalsSignupNeeded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t, nil)
	token := env.tokenFor(t, auth.Principal{UID: "fresh-user", Email: "fresh@gmail.com"})

	recorder := env.do(t, http.MethodGet, "/me", token, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before signup completes, got %d", recorder.Code)
	}
	_, redirect := decodeGateResponse(t, recorder.Body.Bytes())
	if redirect != "/signup" {
		t.Fatalf("expected signup redirect hint, got %q", redirect)
	}
}
