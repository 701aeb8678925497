package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"sanjeevika-api/internal/auth"
	"sanjeevika-api/internal/middleware"
	"sanjeevika-api/internal/model"
)

func requester(c echo.Context) (model.Requester, error) {
	u, ok := middleware.Identity(c)
	if !ok {
		return model.Requester{}, auth.ErrUnknownIdentity
	}
	return model.Requester{Email: u.Email, Name: u.Name}, nil
}

type bookRequest struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

type bookResponse struct {
	Status        string `json:"status"`
	AppointmentID string `json:"appointment_id"`
}

func (h *Handler) Book(c echo.Context) error {
	var req bookRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	who, err := requester(c)
	if err != nil {
		return err
	}

	a, err := h.bookings.Book(c.Request().Context(), req.ProviderID, req.Date, req.Time, who)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, bookResponse{Status: "success", AppointmentID: a.ID})
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	NewDate       string `json:"new_date"`
	NewTime       string `json:"new_time"`
}

func (h *Handler) Reschedule(c echo.Context) error {
	var req rescheduleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if _, err := h.bookings.Reschedule(c.Request().Context(), req.AppointmentID, req.NewDate, req.NewTime); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ack{Status: "success", Message: "appointment rescheduled successfully"})
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
}

func (h *Handler) Cancel(c echo.Context) error {
	var req cancelRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if _, err := h.bookings.Cancel(c.Request().Context(), req.AppointmentID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ack{Status: "success", Message: "appointment canceled successfully"})
}

func (h *Handler) Slots(c echo.Context) error {
	slots, err := h.bookings.ListAvailable(c.Request().Context(), c.Param("provider_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"provider_id": c.Param("provider_id"), "slots": slots})
}

func (h *Handler) Appointment(c echo.Context) error {
	a, err := h.bookings.Get(c.Request().Context(), c.Param("appointment_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// MyAppointments lists the caller's appointments, canceled ones included.
func (h *Handler) MyAppointments(c echo.Context) error {
	who, err := requester(c)
	if err != nil {
		return err
	}
	list, err := h.bookings.ListMine(c.Request().Context(), who.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"appointments": list})
}
