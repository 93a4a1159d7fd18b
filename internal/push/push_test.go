package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bethesda/readingplan/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// 65 byte uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

// browserSubscription returns a subscription with real client keys so the
// payload can be encrypted.
func browserSubscription(t *testing.T, endpoint string) *model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("generate auth secret: %v", err)
	}
	return &model.PushSubscription{
		ID:        1,
		UserID:    "u1",
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(secret),
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	return NewService(pub, priv, "mailto:admin@example.com")
}

func TestSend(t *testing.T) {
	var gotAuth, gotEncoding, gotTTL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotEncoding = r.Header.Get("Content-Encoding")
		gotTTL = r.Header.Get("TTL")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := newTestService(t)
	if !svc.Configured() {
		t.Fatal("expected service to be configured")
	}
	err := svc.Send(context.Background(), browserSubscription(t, srv.URL), Payload{Title: "Day 1 reading", Body: "Genesis 1-3"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.HasPrefix(gotAuth, "vapid ") {
		t.Errorf("authorization = %q, want vapid scheme", gotAuth)
	}
	if gotEncoding != "aes128gcm" {
		t.Errorf("content-encoding = %q, want aes128gcm", gotEncoding)
	}
	if gotTTL != "43200" {
		t.Errorf("ttl = %q, want 43200", gotTTL)
	}
}

func TestSendExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	err := newTestService(t).Send(context.Background(), browserSubscription(t, srv.URL), Payload{Title: "x"})
	if !errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}

func TestSendServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := newTestService(t).Send(context.Background(), browserSubscription(t, srv.URL), Payload{Title: "x"})
	if err == nil || errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want a non-expiry error", err)
	}
}

func TestNotConfigured(t *testing.T) {
	if NewService("", "", "").Configured() {
		t.Error("empty keys should not be configured")
	}
}
