package memdriver

import (
	"context"
	"testing"

	"github.com/zzenonn/nntpvault/internal/domain"
	"github.com/zzenonn/nntpvault/internal/transport"
)

func TestSession_UploadThenGetBody(t *testing.T) {
	store := NewStore()
	factory := NewFactory(store)

	svc, err := factory.Give()
	if err != nil {
		t.Fatalf("Give() error = %v", err)
	}
	ctx := context.Background()

	ok, err := svc.Upload(ctx, transport.Chunk{Locator: domain.Locator("loc"), Subject: "s", Ciphertext: []byte("payload")})
	if err != nil || !ok {
		t.Fatalf("Upload() = (%v, %v), want (true, nil)", ok, err)
	}

	body, err := svc.GetBody(ctx, domain.Locator("loc"))
	if err != nil {
		t.Fatalf("GetBody() error = %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("GetBody() = %q, want %q", body, "payload")
	}
}

func TestSession_UploadToOccupiedLocatorReturnsFalse(t *testing.T) {
	store := NewStore()
	factory := NewFactory(store)
	svc, _ := factory.Give()
	ctx := context.Background()

	ok, err := svc.Upload(ctx, transport.Chunk{Locator: domain.Locator("loc"), Ciphertext: []byte("first")})
	if err != nil || !ok {
		t.Fatalf("first Upload() = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = svc.Upload(ctx, transport.Chunk{Locator: domain.Locator("loc"), Ciphertext: []byte("second")})
	if err != nil {
		t.Fatalf("second Upload() error = %v", err)
	}
	if ok {
		t.Error("second Upload() to an occupied locator returned true")
	}

	body, err := svc.GetBody(ctx, domain.Locator("loc"))
	if err != nil {
		t.Fatalf("GetBody() error = %v", err)
	}
	if string(body) != "first" {
		t.Errorf("occupied locator was overwritten: got %q, want %q", body, "first")
	}
}

func TestSession_GetBodyMissingLocatorReturnsNilNil(t *testing.T) {
	store := NewStore()
	factory := NewFactory(store)
	svc, _ := factory.Give()

	body, err := svc.GetBody(context.Background(), domain.Locator("missing"))
	if err != nil {
		t.Fatalf("GetBody() error = %v", err)
	}
	if body != nil {
		t.Errorf("GetBody() = %v, want nil", body)
	}
}

func TestFactory_SessionsShareStore(t *testing.T) {
	store := NewStore()
	factory := NewFactory(store)
	ctx := context.Background()

	sessionA, _ := factory.Give()
	sessionB, _ := factory.Give()

	if _, err := sessionA.Upload(ctx, transport.Chunk{Locator: domain.Locator("shared"), Ciphertext: []byte("x")}); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	body, err := sessionB.GetBody(ctx, domain.Locator("shared"))
	if err != nil {
		t.Fatalf("GetBody() error = %v", err)
	}
	if string(body) != "x" {
		t.Error("sessions from the same factory did not observe the same store")
	}
}

func TestSession_ConnectSetsConnected(t *testing.T) {
	svc, _ := NewFactory(NewStore()).Give()
	if svc.Connected() {
		t.Error("new session reports connected before Connect")
	}
	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !svc.Connected() {
		t.Error("session does not report connected after Connect")
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if svc.Connected() {
		t.Error("session reports connected after Close")
	}
}
