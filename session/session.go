// Package session is the credential store: it answers "who is logged in" for
// the request client without any ambient global state.
//
// A session is persisted as one JSON value under a key (loggedInUser by
// default) in a KV backend:
//
//	{"jwt": "<token>", "user": {"id": 7, "username": "ada"}}
//
// Anything unreadable, malformed, or expired reads as "no session".
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/unkn0wn-root/querycache"
)

const DefaultKey = "loggedInUser"

var ErrInvalidSession = errors.New("session: token and positive user id are required")

type Session struct {
	Token    string
	UserID   int64
	Username string
}

// Store is the read side consumed by the request client. It has no side effects.
type Store interface {
	Session(ctx context.Context) (Session, bool)
}

// KV is process-local persistent key/value storage.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type stored struct {
	JWT  string `json:"jwt"`
	User struct {
		ID       int64  `json:"id"`
		Username string `json:"username,omitempty"`
	} `json:"user"`
}

type Options struct {
	Key    string            // "" => DefaultKey
	Logger querycache.Logger // nil => NopLogger
	Now    func() time.Time  // nil => time.Now
}

// KVStore reads and writes the session layout in a KV backend.
type KVStore struct {
	kv  KV
	key string
	log querycache.Logger
	now func() time.Time
}

var _ Store = (*KVStore)(nil)

func NewKVStore(kv KV, opts Options) *KVStore {
	s := &KVStore{kv: kv, key: opts.Key, log: opts.Logger, now: opts.Now}
	if s.key == "" {
		s.key = DefaultKey
	}
	s.log = querycache.LoggerOrNop(s.log)
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *KVStore) Session(ctx context.Context) (Session, bool) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.log.Warn("session read failed", querycache.Fields{"key": s.key, "err": err})
		return Session{}, false
	}
	if !ok {
		return Session{}, false
	}
	var st stored
	if err := json.Unmarshal(raw, &st); err != nil {
		s.log.Debug("session value malformed", querycache.Fields{"key": s.key, "err": err})
		return Session{}, false
	}
	tok := strings.TrimSpace(st.JWT)
	if tok == "" || st.User.ID <= 0 {
		return Session{}, false
	}
	if s.expired(tok) {
		s.log.Debug("session token expired", querycache.Fields{"user": st.User.ID})
		return Session{}, false
	}
	return Session{Token: tok, UserID: st.User.ID, Username: st.User.Username}, true
}

// expired reports whether tok is a JWT whose exp is in the past. The signature
// is not checked (the server does that); opaque tokens never expire here.
func (s *KVStore) expired(tok string) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !s.now().Before(claims.ExpiresAt.Time)
}

// Save persists sess after a successful login or registration.
func (s *KVStore) Save(ctx context.Context, sess Session) error {
	if strings.TrimSpace(sess.Token) == "" || sess.UserID <= 0 {
		return ErrInvalidSession
	}
	var st stored
	st.JWT = sess.Token
	st.User.ID = sess.UserID
	st.User.Username = sess.Username
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.key, b)
}

// Clear removes the session (logout).
func (s *KVStore) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, s.key)
}

// Static is a fixed Store, mainly for tests and scripts.
type Static struct {
	S  Session
	OK bool
}

func (s Static) Session(context.Context) (Session, bool) { return s.S, s.OK }
