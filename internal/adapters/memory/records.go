package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

type patientRepo struct {
	s *Store
}

func (r *patientRepo) Create(ctx context.Context, p *entities.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.patients {
		if existing.CardNumber == p.CardNumber {
			return apperrors.NewConflictError("card number already issued").WithCode(apperrors.CodeCardNumberTaken)
		}
	}
	if _, ok := r.s.patients[p.ID]; ok {
		return apperrors.NewConflictError(fmt.Sprintf("patient %s already exists", p.ID))
	}
	c := *p
	r.s.patients[p.ID] = &c
	return nil
}

func (r *patientRepo) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if p, ok := r.s.patients[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", id)).
		WithCode(apperrors.CodePatientNotFound)
}

func (r *patientRepo) GetByCardNumber(ctx context.Context, cardNumber string) (*entities.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.patients {
		if p.CardNumber == cardNumber {
			c := *p
			return &c, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("no patient holds card %s", cardNumber)).
		WithCode(apperrors.CodePatientNotFound)
}

func (r *patientRepo) Count(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.patients), nil
}

func (r *patientRepo) CardNumberExists(ctx context.Context, cardNumber string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.patients {
		if p.CardNumber == cardNumber {
			return true, nil
		}
	}
	return false, nil
}

type appointmentRepo struct {
	s *Store
}

func (r *appointmentRepo) Count(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.appointments), nil
}

func (r *appointmentRepo) CardNumberExists(ctx context.Context, cardNumber string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.appointments {
		if a.CardNumber == cardNumber {
			return true, nil
		}
	}
	return false, nil
}

type staffRepo struct {
	s *Store
}

func (r *staffRepo) Create(ctx context.Context, server *entities.Server) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *server
	r.s.staff[server.ID] = &c
	return nil
}

func (r *staffRepo) GetByID(ctx context.Context, id string) (*entities.Server, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if s, ok := r.s.staff[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("staff member %s not found", id)).
		WithCode(apperrors.CodeServerNotFound)
}

type labRequestRepo struct {
	s *Store
}

func (r *labRequestRepo) Create(ctx context.Context, req *entities.LabRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.labRequests[req.ID]; ok {
		return apperrors.NewConflictError(fmt.Sprintf("lab request %s already exists", req.ID))
	}
	r.s.labRequests[req.ID] = req.Clone()
	return nil
}

func (r *labRequestRepo) GetByID(ctx context.Context, id string) (*entities.LabRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if req, ok := r.s.labRequests[id]; ok {
		return req.Clone(), nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("lab request %s not found", id)).
		WithCode(apperrors.CodeLabRequestNotFound)
}

func (r *labRequestRepo) ListByQueueEntry(ctx context.Context, queueEntryID string) ([]*entities.LabRequest, error) {
	r.s.mu.RLock()
	var out []*entities.LabRequest
	for _, req := range r.s.labRequests {
		if req.QueueEntryID == queueEntryID {
			out = append(out, req.Clone())
		}
	}
	r.s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *labRequestRepo) Transition(ctx context.Context, req *entities.LabRequest, from entities.LabRequestStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.labRequests[req.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	r.s.labRequests[req.ID] = req.Clone()
	return true, nil
}

type notificationRepo struct {
	s *Store
}

func (r *notificationRepo) Create(ctx context.Context, n *entities.QueueNotification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *n
	r.s.notifications[n.ID] = &c
	return nil
}

func (r *notificationRepo) Update(ctx context.Context, n *entities.QueueNotification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.notifications[n.ID]; !ok {
		return apperrors.NewNotFoundError("notification record " + n.ID + " not found")
	}
	c := *n
	r.s.notifications[n.ID] = &c
	return nil
}

func (r *notificationRepo) ListByEntry(ctx context.Context, entryID string) ([]*entities.QueueNotification, error) {
	r.s.mu.RLock()
	var out []*entities.QueueNotification
	for _, n := range r.s.notifications {
		if n.EntryID == entryID {
			c := *n
			out = append(out, &c)
		}
	}
	r.s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
