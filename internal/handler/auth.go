package handler

import (
	"context"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/EugeneTurkin/fav-movies/internal/middleware"
	"github.com/EugeneTurkin/fav-movies/internal/model"
)

// Credential length limits, counted in characters.
const (
	nameMinLen     = 5
	nameMaxLen     = 100
	passwordMinLen = 10
	passwordMaxLen = 200
)

// CredentialService registers and authenticates profiles.
type CredentialService interface {
	Register(ctx context.Context, name, password string) (*model.Profile, error)
	Authenticate(ctx context.Context, name, password string) (*model.Profile, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(profileID int64) (string, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	creds  CredentialService
	tokens TokenIssuer
}

func NewAuthHandler(creds CredentialService, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{creds: creds, tokens: tokens}
}

// ----- DTOs -----

type credentialsReq struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type profileResp struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResp struct {
	Token string `json:"token"`
}

func newProfileResp(p *model.Profile) profileResp {
	return profileResp{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt}
}

func bindCredentials(c echo.Context) (credentialsReq, error) {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return req, invalid("body must be a JSON object with name and password")
	}
	if n := utf8.RuneCountInString(req.Name); n < nameMinLen || n > nameMaxLen {
		return req, invalid("name must be %d to %d characters long", nameMinLen, nameMaxLen)
	}
	if n := utf8.RuneCountInString(req.Password); n < passwordMinLen || n > passwordMaxLen {
		return req, invalid("password must be %d to %d characters long", passwordMinLen, passwordMaxLen)
	}
	return req, nil
}

// Register: create a profile.
func (h *AuthHandler) Register(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.creds.Register(ctx, req.Name, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newProfileResp(p))
}

// Login: verify credentials and return a fresh access token.
func (h *AuthHandler) Login(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.creds.Authenticate(ctx, req.Name, req.Password)
	if err != nil {
		return err
	}
	tok, err := h.tokens.Issue(p.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tokenResp{Token: tok})
}

// Profile: the token owner's profile.
func (h *AuthHandler) Profile(c echo.Context) error {
	p, ok := middleware.CurrentProfile(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, newProfileResp(p))
}
