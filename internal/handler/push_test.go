package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/bethesda/readingplan/internal/model"
	"github.com/bethesda/readingplan/internal/push"
	"github.com/bethesda/readingplan/internal/store"
)

type recordingSender struct {
	sent    int
	expired map[string]bool
}

func (s *recordingSender) Send(_ context.Context, sub *model.PushSubscription, _ push.Payload) error {
	if s.expired[sub.Endpoint] {
		return push.ErrExpired
	}
	s.sent++
	return nil
}

func newPushHandler(env *testEnv, sender push.Sender) (*PushHandler, *store.PushStore) {
	ps := store.NewPushStore(env.db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPushHandler(ps, sender, "pub-key", logger), ps
}

func TestPushSubscribe(t *testing.T) {
	env := setupHandlerTest(t)
	h, _ := newPushHandler(env, &recordingSender{})
	u := env.member(t, "alice@example.com", true)

	req := httptest.NewRequest("POST", "/api/push/subscriptions", jsonBody(t, subscribeRequest{
		Endpoint: "https://push.example/1", P256dh: "p", Auth: "a", DeviceName: "phone",
	}))
	rec := httptest.NewRecorder()
	h.Subscribe(rec, asUser(req, u.ID, true))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	sub := decode[model.PushSubscription](t, rec)
	if sub.UserID != u.ID || sub.DeviceName != "phone" {
		t.Errorf("subscription = %+v", sub)
	}

	req = httptest.NewRequest("GET", "/api/push/subscriptions", nil)
	rec = httptest.NewRecorder()
	h.List(rec, asUser(req, u.ID, true))
	subs := decode[[]model.PushSubscription](t, rec)
	if len(subs) != 1 {
		t.Errorf("listed %d subscriptions, want 1", len(subs))
	}
}

func TestPushSubscribeMissingKeys(t *testing.T) {
	env := setupHandlerTest(t)
	h, _ := newPushHandler(env, &recordingSender{})
	u := env.member(t, "alice@example.com", true)

	req := httptest.NewRequest("POST", "/api/push/subscriptions", jsonBody(t, subscribeRequest{Endpoint: "https://push.example/1"}))
	rec := httptest.NewRecorder()
	h.Subscribe(rec, asUser(req, u.ID, true))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPushUnsubscribe(t *testing.T) {
	env := setupHandlerTest(t)
	h, ps := newPushHandler(env, &recordingSender{})
	alice := env.member(t, "alice@example.com", true)
	bob := env.member(t, "bob@example.com", true)
	sub, err := ps.Create(context.Background(), alice.ID, "https://push.example/1", "p", "a", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	del := func(userID string) int {
		req := httptest.NewRequest("DELETE", "/api/push/subscriptions/"+strconv.FormatInt(sub.ID, 10), nil)
		req.SetPathValue("id", strconv.FormatInt(sub.ID, 10))
		rec := httptest.NewRecorder()
		h.Unsubscribe(rec, asUser(req, userID, true))
		return rec.Code
	}
	if code := del(bob.ID); code != http.StatusNotFound {
		t.Errorf("bob delete status = %d, want 404", code)
	}
	if code := del(alice.ID); code != http.StatusNoContent {
		t.Errorf("alice delete status = %d, want 204", code)
	}
}

func TestPushVAPIDKey(t *testing.T) {
	env := setupHandlerTest(t)
	h, _ := newPushHandler(env, &recordingSender{})

	rec := httptest.NewRecorder()
	h.VAPIDKey(rec, httptest.NewRequest("GET", "/api/push/vapid-key", nil))
	body := decode[map[string]string](t, rec)
	if body["public_key"] != "pub-key" {
		t.Errorf("public_key = %q", body["public_key"])
	}
}

func TestPushTestDropsExpired(t *testing.T) {
	env := setupHandlerTest(t)
	sender := &recordingSender{expired: map[string]bool{"https://push.example/old": true}}
	h, ps := newPushHandler(env, sender)
	u := env.member(t, "alice@example.com", true)
	ctx := context.Background()
	ps.Create(ctx, u.ID, "https://push.example/new", "p", "a", "")
	ps.Create(ctx, u.ID, "https://push.example/old", "p", "a", "")

	req := httptest.NewRequest("POST", "/api/push/test", nil)
	rec := httptest.NewRecorder()
	h.Test(rec, asUser(req, u.ID, true))
	body := decode[map[string]int](t, rec)
	if body["sent"] != 1 {
		t.Errorf("sent = %d, want 1", body["sent"])
	}

	subs, _ := ps.ListByUser(ctx, u.ID)
	if len(subs) != 1 || subs[0].Endpoint != "https://push.example/new" {
		t.Errorf("remaining = %+v", subs)
	}
}
