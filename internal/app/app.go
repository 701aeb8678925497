// Package app assembles the HTTP surface: middleware chain, routes and the
// single place where errors become responses.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"sanjeevika-api/internal/apperr"
	"sanjeevika-api/internal/auth"
	"sanjeevika-api/internal/handler"
	"sanjeevika-api/internal/middleware"
)

// ReadyCheck is a named dependency probe for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

type Deps struct {
	Handler        *handler.Handler
	Tokens         middleware.TokenVerifier
	Identities     middleware.IdentityResolver
	Limiter        middleware.Limiter
	Checks         []ReadyCheck
	CORSOrigins    []string
	// TrustedProxies are peers whose X-Forwarded-For header is believed.
	TrustedProxies []*net.IPNet
	Log            zerolog.Logger
}

func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(d.Log)
	e.IPExtractor = ipExtractor(d.TrustedProxies)

	// outermost first
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			c.Set(middleware.RequestIDKey, id)
		},
	}))
	e.Use(middleware.Logger(d.Log))
	e.Use(middleware.Recovery(d.Log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderXRequestID, auth.Header},
	}))
	e.Use(echomw.BodyLimit("1M"))

	registerRoutes(e, d)
	return e
}

// ipExtractor keys clients on the socket peer. Forwarding headers count only
// when the peer is one of the configured proxies.
func ipExtractor(proxies []*net.IPNet) echo.IPExtractor {
	if len(proxies) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range proxies {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

func registerRoutes(e *echo.Echo, d Deps) {
	h := d.Handler

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", readyz(d.Checks))

	limited := []echo.MiddlewareFunc{}
	if d.Limiter != nil {
		limited = append(limited, middleware.RateLimit(d.Limiter, d.Log))
	}
	e.POST("/signup", h.Signup, limited...)
	e.POST("/signin", h.Signin, limited...)

	gate := middleware.Auth(d.Tokens, d.Identities)

	e.POST("/book", h.Book, gate)
	e.POST("/reschedule", h.Reschedule, gate)
	e.POST("/cancel_appointment", h.Cancel, gate)
	e.GET("/slots/:provider_id", h.Slots, gate)
	e.GET("/appointments", h.MyAppointments, gate)
	e.GET("/appointments/:appointment_id", h.Appointment, gate)

	e.GET("/nearby_hospitals", h.NearbyHospitals, gate)
	e.POST("/register_hospital", h.RegisterHospital, gate)
	e.GET("/get_hospitals", h.Hospitals, gate)

	e.POST("/add_user", h.AddPatient, gate)
	e.POST("/add_health_rec", h.AddHealthRecord, gate)
	e.GET("/get_health_rec/:user_id", h.HealthRecords, gate)
	e.POST("/update_health_rec", h.UpdateHealthRecord, gate)
	e.DELETE("/delete_health_rec", h.DeleteHealthRecord, gate)

	e.POST("/add_resource", h.AddResource, gate)
	e.GET("/get_resource/:resource_type/:resource_id", h.Resource, gate)
	e.GET("/get_resources/:resource_type", h.Resources, gate)
	e.GET("/filter_resources/:resource_type", h.FilterResources, gate)
}

func readyz(checks []ReadyCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		var failures []string
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			err := check.Check(ctx)
			cancel()
			if err != nil {
				failures = append(failures, check.Name+": "+err.Error())
			}
		}
		if len(failures) > 0 {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failures": failures})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// errorHandler is the only place an error is turned into a response.
// Internal causes are logged and replaced with a generic message.
func errorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			body   errorBody
			ae     *apperr.Error
			he     *echo.HTTPError
		)
		// taxonomy errors may wrap an echo error, e.g. a failed Bind
		if !errors.As(err, &ae) && errors.As(err, &he) {
			status = he.Code
			body = errorBody{Message: fmt.Sprint(he.Message), Code: strings.ReplaceAll(http.StatusText(he.Code), " ", "")}
			if status >= http.StatusInternalServerError {
				body.Message = "internal error"
			}
		} else {
			ae = apperr.From(err)
			status = apperr.HTTPStatus(ae.Kind)
			body = errorBody{Message: ae.Message, Code: ae.Code}
			if ae.Kind == apperr.KindInternal {
				rid, _ := c.Get(middleware.RequestIDKey).(string)
				log.Error().Err(err).Str("request_id", rid).Str("path", c.Path()).Msg("internal error")
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error().Err(err).Msg("write error response")
		}
	}
}
