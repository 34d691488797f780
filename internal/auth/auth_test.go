package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestProvider(t *testing.T) *LocalProvider {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	p, err := NewLocalProvider(db, []byte("test-secret"))
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	return p
}

func TestRegisterThenAuthenticate(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	if err := p.Register(ctx, "ada", "hunter2"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := p.Authenticate(ctx, "ada", "hunter2"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	if err := p.Register(ctx, "ada", "hunter2"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := p.Authenticate(ctx, "ada", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if err := p.Authenticate(ctx, "nobody", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v", err)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	if err := p.Register(ctx, "ada", "hunter2"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := p.Register(ctx, "ada", "other"); !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("duplicate: got %v", err)
	}
}

func TestDigestsDifferPerUser(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	if err := p.Register(ctx, "ada", "hunter2"); err != nil {
		t.Fatalf("register ada: %v", err)
	}
	if err := p.Register(ctx, "bob", "hunter2"); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	var d1, d2 []byte
	if err := p.db.QueryRow(`SELECT digest FROM credentials WHERE username='ada'`).Scan(&d1); err != nil {
		t.Fatalf("read ada: %v", err)
	}
	if err := p.db.QueryRow(`SELECT digest FROM credentials WHERE username='bob'`).Scan(&d2); err != nil {
		t.Fatalf("read bob: %v", err)
	}
	if string(d1) == string(d2) {
		t.Fatalf("same password must not produce the same digest across users")
	}
}
