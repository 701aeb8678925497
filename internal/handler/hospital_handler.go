package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type registerHospitalRequest struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Long *float64 `json:"long"`
}

func (h *Handler) RegisterHospital(c echo.Context) error {
	var req registerHospitalRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	hosp, err := h.hospitals.Register(c.Request().Context(), req.Name, req.Lat, req.Long)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"message": "hospital registered successfully",
		"uuid":    hosp.UUID,
	})
}

func (h *Handler) Hospitals(c echo.Context) error {
	list, err := h.hospitals.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

type nearbyHospital struct {
	UUID      string  `json:"uuid"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *Handler) NearbyHospitals(c echo.Context) error {
	list, err := h.hospitals.Nearby(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]nearbyHospital, len(list))
	for i, hosp := range list {
		out[i] = nearbyHospital{UUID: hosp.UUID, Name: hosp.Name, Latitude: hosp.Lat, Longitude: hosp.Long}
	}
	return c.JSON(http.StatusOK, map[string]any{"nearest_hospitals": out})
}
