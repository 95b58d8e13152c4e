// Package auth holds local users, their browser sessions and the Aptner
// credentials stored on their behalf.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/visitsched/internal/aptner"
	"github.com/example/visitsched/internal/crypto"
	"github.com/example/visitsched/internal/db"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoAptnerAccount    = errors.New("no aptner credentials stored for user")
)

type Store struct {
	sc     *securecookie.SecureCookie
	db     *db.DB
	sealer *crypto.Sealer
}

func NewStore(d *db.DB, hashKey, blockKey []byte, sealer *crypto.Sealer) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(sessionTTL.Seconds()))
	return &Store{sc: sc, db: d, sealer: sealer}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// compared against when the username is unknown, so both paths pay for bcrypt
var dummyHash, _ = HashPassword("visitsched-dummy")

func (s *Store) CreateUser(ctx context.Context, username, password string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 8 {
		return 0, errors.New("username required and password must be at least 8 characters")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRow(ctx, `INSERT INTO users(username, password_bcrypt) VALUES ($1,$2) RETURNING id`, username, hash).Scan(&id)
	return id, db.Wrap(err)
}

func (s *Store) Authenticate(ctx context.Context, username, password string) (int64, error) {
	var id int64
	var hash string
	err := s.db.QueryRow(ctx, `SELECT id, password_bcrypt FROM users WHERE username=$1`, strings.TrimSpace(username)).Scan(&id, &hash)
	if err != nil {
		if db.IsNotFound(err) {
			CheckPassword(dummyHash, password)
			return 0, ErrInvalidCredentials
		}
		return 0, db.Wrap(err)
	}
	if !CheckPassword(hash, password) {
		return 0, ErrInvalidCredentials
	}
	return id, nil
}

// SaveAptnerCredentials seals and stores the user's Aptner login.
func (s *Store) SaveAptnerCredentials(ctx context.Context, userID int64, creds aptner.Credentials) error {
	if strings.TrimSpace(creds.ID) == "" || creds.Password == "" {
		return errors.New("aptner id and password are required")
	}
	sealed, err := s.sealer.Seal(creds.Password, credentialAD(userID))
	if err != nil {
		return err
	}
	return db.Wrap(s.db.Exec(ctx, `
INSERT INTO aptner_credentials(user_id, aptner_id, password_sealed) VALUES ($1,$2,$3)
ON CONFLICT (user_id) DO UPDATE SET aptner_id=EXCLUDED.aptner_id, password_sealed=EXCLUDED.password_sealed, updated_at=now()`,
		userID, strings.TrimSpace(creds.ID), sealed))
}

func (s *Store) AptnerCredentials(ctx context.Context, userID int64) (aptner.Credentials, error) {
	var id, sealed string
	err := s.db.QueryRow(ctx, `SELECT aptner_id, password_sealed FROM aptner_credentials WHERE user_id=$1`, userID).Scan(&id, &sealed)
	if err != nil {
		if db.IsNotFound(err) {
			return aptner.Credentials{}, ErrNoAptnerAccount
		}
		return aptner.Credentials{}, db.Wrap(err)
	}
	pw, err := s.sealer.Open(sealed, credentialAD(userID))
	if err != nil {
		return aptner.Credentials{}, fmt.Errorf("open stored aptner password: %w", err)
	}
	return aptner.Credentials{ID: id, Password: pw}, nil
}

func credentialAD(userID int64) string { return fmt.Sprintf("aptner_credentials:%d", userID) }
