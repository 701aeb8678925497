package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"sanjeevika-api/internal/model"
)

type addPatientRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

func (h *Handler) AddPatient(c echo.Context) error {
	var req addPatientRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.clinical.AddPatient(c.Request().Context(), req.UserID, req.Name, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, message{Message: fmt.Sprintf("user %s added successfully", req.Name)})
}

type addRecordRequest struct {
	UserID     string         `json:"user_id"`
	RecordData map[string]any `json:"record_data"`
}

func (h *Handler) AddHealthRecord(c echo.Context) error {
	var req addRecordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id, err := h.clinical.AddHealthRecord(c.Request().Context(), req.UserID, req.RecordData)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"message":   fmt.Sprintf("health record with ID %s added successfully", id),
		"record_id": id,
	})
}

func (h *Handler) HealthRecords(c echo.Context) error {
	lines, err := h.clinical.HealthRecords(c.Request().Context(), c.Param("user_id"), c.QueryParam("type"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"records": lines})
}

type updateRecordRequest struct {
	UserID     string         `json:"user_id"`
	RecordID   string         `json:"record_id"`
	RecordData map[string]any `json:"record_data"`
}

func (h *Handler) UpdateHealthRecord(c echo.Context) error {
	var req updateRecordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.clinical.UpdateHealthRecord(c.Request().Context(), req.UserID, req.RecordID, req.RecordData); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message{Message: fmt.Sprintf("health record with ID %s updated successfully", req.RecordID)})
}

func (h *Handler) DeleteHealthRecord(c echo.Context) error {
	recordID := c.QueryParam("record_id")
	if err := h.clinical.DeleteHealthRecord(c.Request().Context(), c.QueryParam("user_id"), recordID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message{Message: fmt.Sprintf("health record with ID %s deleted successfully", recordID)})
}

func (h *Handler) AddResource(c echo.Context) error {
	var body map[string]any
	if err := bind(c, &body); err != nil {
		return err
	}
	r, err := h.clinical.AddResource(c.Request().Context(), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"message": fmt.Sprintf("%s added successfully", body["resourceType"]),
		"id":      r.ID,
	})
}

func (h *Handler) Resource(c echo.Context) error {
	r, err := h.clinical.Resource(c.Request().Context(), c.Param("resource_type"), c.Param("resource_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r.Body)
}

func (h *Handler) Resources(c echo.Context) error {
	list, err := h.clinical.Resources(c.Request().Context(), c.Param("resource_type"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"resources": bodies(list)})
}

func (h *Handler) FilterResources(c echo.Context) error {
	list, err := h.clinical.FilterResources(c.Request().Context(),
		c.Param("resource_type"), c.QueryParam("field"), c.QueryParam("value"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"resources": bodies(list)})
}

func bodies(list []model.Resource) []map[string]any {
	out := make([]map[string]any, len(list))
	for i, r := range list {
		out[i] = r.Body
	}
	return out
}
