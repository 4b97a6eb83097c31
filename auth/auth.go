// Package auth implements login, registration and logout against the Strapi
// users-permissions endpoints, persisting the resulting session.
package auth

import (
	"context"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/apiclient"
	"github.com/unkn0wn-root/querycache/errs"
	"github.com/unkn0wn-root/querycache/session"
)

const (
	loginPath    = "/auth/local"
	registerPath = "/auth/local/register"
)

type Credentials struct {
	Identifier string `json:"identifier"` // username or email
	Password   string `json:"password"`
}

func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Identifier, validation.Required),
		validation.Field(&c.Password, validation.Required, validation.Length(8, 0)),
	)
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(5, 0)),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 0)),
	)
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SessionWriter persists and clears the session; *session.KVStore implements it.
type SessionWriter interface {
	Save(ctx context.Context, s session.Session) error
	Clear(ctx context.Context) error
}

var _ SessionWriter = (*session.KVStore)(nil)

type Sender interface {
	Send(ctx context.Context, r apiclient.Request) (*apiclient.Response, error)
}

type Service struct {
	client   Sender
	sessions SessionWriter
	log      querycache.Logger

	// OnLogout runs after the session is cleared, e.g. to drop cached pages.
	OnLogout func(ctx context.Context)
}

func New(client Sender, sessions SessionWriter, log querycache.Logger) *Service {
	return &Service{client: client, sessions: sessions, log: querycache.LoggerOrNop(log)}
}

// Login exchanges credentials for a token and saves the session.
func (s *Service) Login(ctx context.Context, c Credentials) (User, error) {
	if err := c.Validate(); err != nil {
		return User{}, errs.InvalidQueryParameter("credentials", err)
	}
	return s.authenticate(ctx, loginPath, c)
}

// Register creates an account and logs it in.
func (s *Service) Register(ctx context.Context, r Registration) (User, error) {
	if err := r.Validate(); err != nil {
		return User{}, errs.InvalidQueryParameter("registration", err)
	}
	return s.authenticate(ctx, registerPath, r)
}

func (s *Service) Logout(ctx context.Context) error {
	if err := s.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if s.OnLogout != nil {
		s.OnLogout(ctx)
	}
	s.log.Info("logged out", nil)
	return nil
}

func (s *Service) authenticate(ctx context.Context, path string, body any) (User, error) {
	resp, err := s.client.Send(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      path,
		Body:      body,
		Anonymous: true,
	})
	if err != nil {
		return User{}, err
	}
	var out struct {
		JWT  string `json:"jwt"`
		User User   `json:"user"`
	}
	if err := resp.Decode(&out); err != nil {
		return User{}, err
	}
	if err := s.sessions.Save(ctx, session.Session{Token: out.JWT, UserID: out.User.ID, Username: out.User.Username}); err != nil {
		return User{}, fmt.Errorf("save session: %w", err)
	}
	s.log.Info("logged in", querycache.Fields{"user": out.User.ID})
	return out.User, nil
}
