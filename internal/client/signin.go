// ABOUTME: Username/password sign-in against the auth endpoint
// ABOUTME: Validates input, exchanges it for a token and stores the resulting session

package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/markalston/propdesk/internal/session"
	"github.com/markalston/propdesk/internal/validation"
)

// Credentials is the login form
type Credentials struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// LoginResponse is the auth endpoint's success body
type LoginResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	User        session.Identity `json:"user"`
}

// SignIn exchanges creds for a token and replaces the current session.
// A rejected password comes back as a ClassLoginRejected *Error and leaves
// the session untouched.
func (c *Client) SignIn(ctx context.Context, creds Credentials) (session.Identity, error) {
	if err := validation.Struct(creds); err != nil {
		return nil, fmt.Errorf("invalid login input: %w", err)
	}

	var resp LoginResponse
	err := c.DoJSON(ctx, Call{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   creds,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.AccessToken == "" || resp.User.IsEmpty() {
		return nil, &Error{Class: ClassClientError, Status: http.StatusOK, Message: "login response is missing the token or user"}
	}

	c.store.Login(resp.AccessToken, resp.User)
	return c.store.Identity(), nil
}

// SignOut ends the session locally. The server keeps no session state to
// revoke.
func (c *Client) SignOut() {
	c.store.Logout()
}
