package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/hospitalqueue/internal/api/response"
	"github.com/zatekoja/hospitalqueue/internal/application/services"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
)

// PatientService defines the walk-in registration operations
type PatientService interface {
	Register(ctx context.Context, req services.RegisterPatientRequest) (*entities.Patient, error)
	GetByCardNumber(ctx context.Context, cardNumber string) (*entities.Patient, error)
}

// PatientHandler handles patient registration requests
type PatientHandler struct {
	service PatientService
}

// NewPatientHandler creates a new patient handler
func NewPatientHandler(service PatientService) *PatientHandler {
	return &PatientHandler{service: service}
}

// Register handles POST /api/patients
func (h *PatientHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterPatientRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	patient, err := h.service.Register(r.Context(), req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, patient)
}

// GetByCard handles GET /api/patients/card/{cardNumber}
func (h *PatientHandler) GetByCard(w http.ResponseWriter, r *http.Request) {
	patient, err := h.service.GetByCardNumber(r.Context(), r.PathValue("cardNumber"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, patient)
}
