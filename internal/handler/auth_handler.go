package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"sanjeevika-api/internal/account"
	"sanjeevika-api/internal/apperr"
)

// unknown email and wrong password look the same to the caller
var errInvalidCredentials = apperr.New(apperr.KindAuth, "InvalidCredentials", "invalid credentials")

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type signupResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

func (h *Handler) Signup(c echo.Context) error {
	var req signupRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id, err := h.accounts.Register(c.Request().Context(), req.Email, req.Name, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, signupResponse{Message: "user registered successfully", UserID: id})
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinResponse struct {
	Token string `json:"token"`
}

func (h *Handler) Signin(c echo.Context) error {
	var req signinRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	u, err := h.accounts.Authenticate(c.Request().Context(), req.Email, req.Password)
	if errors.Is(err, account.ErrNotFound) || errors.Is(err, account.ErrBadCredentials) {
		h.log.Info().Str("reason", apperr.From(err).Code).Msg("signin rejected")
		return errInvalidCredentials
	}
	if err != nil {
		return err
	}

	tok, err := h.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, signinResponse{Token: tok})
}
