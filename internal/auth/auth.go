// Package auth is the identity boundary: sessions talk to a Provider and
// never see credential material. The shipped LocalProvider keeps HMAC-SHA256
// salted digests in its own sqlite table.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUsernameExists     = errors.New("auth: username exists")
)

// Provider verifies and creates accounts. Implementations may be remote; the
// server only depends on this interface.
type Provider interface {
	Authenticate(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, password string) error
}

type LocalProvider struct {
	db     *sql.DB
	secret []byte
}

// NewLocalProvider stores digests in the given database. The secret keys the
// HMAC so a copied database file alone cannot be brute-forced offline.
func NewLocalProvider(db *sql.DB, secret []byte) (*LocalProvider, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("auth: empty secret")
	}
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS credentials (
	username TEXT PRIMARY KEY,
	salt     BLOB NOT NULL,
	digest   BLOB NOT NULL
)`)
	if err != nil {
		return nil, err
	}
	return &LocalProvider{db: db, secret: secret}, nil
}

func (p *LocalProvider) Authenticate(ctx context.Context, username, password string) error {
	var salt, digest []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT salt, digest FROM credentials WHERE username = ?`, username).
		Scan(&salt, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if !hmac.Equal(digest, p.digest(salt, username, password)) {
		return ErrInvalidCredentials
	}
	return nil
}

func (p *LocalProvider) Register(ctx context.Context, username, password string) error {
	var exists int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credentials WHERE username = ?`, username).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return ErrUsernameExists
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO credentials (username, salt, digest) VALUES (?, ?, ?)`,
		username, salt, p.digest(salt, username, password))
	return err
}

func (p *LocalProvider) digest(salt []byte, username, password string) []byte {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(salt)
	mac.Write([]byte(username))
	mac.Write([]byte{0})
	mac.Write([]byte(password))
	return mac.Sum(nil)
}
