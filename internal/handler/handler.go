// Package handler binds HTTP requests to the workflow services. Handlers
// return typed errors and leave status mapping to the app's error handler.
package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"sanjeevika-api/internal/account"
	"sanjeevika-api/internal/apperr"
	"sanjeevika-api/internal/auth"
	"sanjeevika-api/internal/booking"
	"sanjeevika-api/internal/clinical"
	"sanjeevika-api/internal/hospital"
)

type Handler struct {
	accounts  *account.Service
	tokens    *auth.TokenService
	bookings  *booking.Service
	clinical  *clinical.Service
	hospitals *hospital.Service
	log       zerolog.Logger
}

type Deps struct {
	Accounts  *account.Service
	Tokens    *auth.TokenService
	Bookings  *booking.Service
	Clinical  *clinical.Service
	Hospitals *hospital.Service
	Log       zerolog.Logger
}

func New(d Deps) *Handler {
	return &Handler{
		accounts:  d.Accounts,
		tokens:    d.Tokens,
		bookings:  d.Bookings,
		clinical:  d.Clinical,
		hospitals: d.Hospitals,
		log:       d.Log,
	}
}

var errBadBody = apperr.Validation("invalid request body")

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errBadBody.Wrap(err)
	}
	return nil
}

type message struct {
	Message string `json:"message"`
}

type ack struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
