package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/zatekoja/hospitalqueue/internal/api/middleware"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

// maxBodyBytes bounds request bodies; every payload here is a few fields
const maxBodyBytes = 64 << 10

// decodeJSON reads the request body into dst. An empty body leaves dst
// untouched so optional payloads can be omitted.
func decodeJSON(r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		validation := apperrors.NewValidationError("invalid request payload")
		validation.Err = err
		return validation
	}
	return nil
}

// currentServer returns the server attached by the auth middleware
func currentServer(r *http.Request) (*entities.Server, error) {
	server, ok := middleware.ServerFromContext(r.Context())
	if !ok {
		return nil, apperrors.NewUnauthorizedError("authentication required")
	}
	return server, nil
}

func currentDoctor(r *http.Request) (entities.Doctor, error) {
	server, err := currentServer(r)
	if err != nil {
		return entities.Doctor{}, err
	}
	doctor, ok := server.AsDoctor()
	if !ok {
		return entities.Doctor{}, roleRequired(entities.RoleDoctor)
	}
	return doctor, nil
}

func currentLabTechnician(r *http.Request) (entities.LabTechnician, error) {
	server, err := currentServer(r)
	if err != nil {
		return entities.LabTechnician{}, err
	}
	tech, ok := server.AsLabTechnician()
	if !ok {
		return entities.LabTechnician{}, roleRequired(entities.RoleLabTechnician)
	}
	return tech, nil
}

func roleRequired(role entities.ServerRole) error {
	return apperrors.NewForbiddenError("this action requires the "+string(role)+" role").
		WithCode(apperrors.CodeRoleRequired).
		WithDetail("required_role", role)
}
