package gateway

import (
	"context"
	"net/http"

	"github.com/go-go-golems/parley/pkg/session"
	"github.com/pkg/errors"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthData struct {
	Email string `json:"email,omitempty"`
}

type AuthResponse struct {
	Status  int       `json:"status,omitempty"`
	Message string    `json:"message,omitempty"`
	Token   string    `json:"token,omitempty"`
	Data    *AuthData `json:"data,omitempty"`
}

// AuthClient signs users in and up. Requests go out without a bearer token.
type AuthClient struct {
	client *Client
	writer session.Writer
}

func NewAuthClient(baseURL string, writer session.Writer, options ...ClientOption) (*AuthClient, error) {
	c, err := NewClient(baseURL, nil, options...)
	if err != nil {
		return nil, err
	}
	return &AuthClient{client: c, writer: writer}, nil
}

// Login authenticates and records the returned token together with the user's
// e-mail (the one the service reports, else the one that was typed in).
func (a *AuthClient) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	resp := &AuthResponse{}
	if err := a.client.do(ctx, http.MethodPost, creds, resp, "auth", "login"); err != nil {
		return nil, err
	}

	if a.writer != nil {
		if resp.Token != "" {
			if err := a.writer.SetToken(resp.Token); err != nil {
				return nil, errors.Wrap(err, "could not store session token")
			}
		}
		email := creds.Email
		if resp.Data != nil && resp.Data.Email != "" {
			email = resp.Data.Email
		}
		if email != "" {
			if err := a.writer.SetEmail(email); err != nil {
				return nil, errors.Wrap(err, "could not store session e-mail")
			}
		}
	}

	return resp, nil
}

// Register creates the account. It does not sign in.
func (a *AuthClient) Register(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	resp := &AuthResponse{}
	if err := a.client.do(ctx, http.MethodPost, creds, resp, "auth", "register"); err != nil {
		return nil, err
	}
	return resp, nil
}
