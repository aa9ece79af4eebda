package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Ibeneme/kindred-app-sub000/internal/model"
)

type RegisterRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"dateOfBirth"`
	Password    string `json:"password"`
}

type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Register creates an unverified account; the server mails a one-time
// code to finish sign-up.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/register", req, nil)
}

// Login exchanges credentials for a token and persists it through the
// guard, so subsequent requests authenticate automatically.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return LoginResult{}, err
	}
	if !c.guard.SaveCredential(out.Token) {
		c.log.Warn("server issued an unusable token")
	}
	return out, nil
}

func (c *Client) VerifyOTP(ctx context.Context, email, code string) error {
	body := map[string]string{"email": email, "otp": code}
	return c.do(ctx, http.MethodPost, "/auth/verify-otp", body, nil)
}

func (c *Client) ResendOTP(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/auth/resend-otp", body, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", body, nil)
}

func (c *Client) ResetPassword(ctx context.Context, email, code, password string) error {
	body := map[string]string{"email": email, "otp": code, "newPassword": password}
	return c.do(ctx, http.MethodPost, "/auth/reset-password", body, nil)
}

// Me fetches the signed-in profile.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var out model.User
	err := c.do(ctx, http.MethodGet, "/users/me", nil, &out)
	return out, err
}

func (c *Client) GetUser(ctx context.Context, id string) (model.User, error) {
	var out model.User
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]model.User, error) {
	var out []model.User
	err := c.do(ctx, http.MethodGet, "/users?query="+url.QueryEscape(query), nil, &out)
	return out, err
}
