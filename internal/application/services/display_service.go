package services

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
)

// DisplayTicket is the public view of a ticket; it carries no patient identity
type DisplayTicket struct {
	QueueNumber string               `json:"queue_number"`
	Priority    entities.Priority    `json:"priority"`
	Status      entities.QueueStatus `json:"status"`
	ServerID    string               `json:"server_id,omitempty"`
	JoinedAt    time.Time            `json:"joined_at"`
}

// DisplayBoard is what the waiting-room screen of a department shows
type DisplayBoard struct {
	Department         string          `json:"department"`
	NowServing         []DisplayTicket `json:"now_serving"`
	Waiting            []DisplayTicket `json:"waiting"`
	WaitingCount       int             `json:"waiting_count"`
	AverageWaitMinutes int             `json:"average_wait_minutes"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// DisplayService builds public display boards
type DisplayService struct {
	entries   repositories.QueueEntryRepository
	queue     *QueueService
	estimator *WaitTimeEstimator
	clock     clock.Clock
}

// NewDisplayService creates a display service
func NewDisplayService(
	entries repositories.QueueEntryRepository,
	queue *QueueService,
	estimator *WaitTimeEstimator,
	clk clock.Clock,
) *DisplayService {
	return &DisplayService{
		entries:   entries,
		queue:     queue,
		estimator: estimator,
		clock:     clk,
	}
}

// Board returns the department's board, both lists in dispatch order
func (s *DisplayService) Board(ctx context.Context, department string) (*DisplayBoard, error) {
	department, err := s.queue.ResolveDepartment(department)
	if err != nil {
		return nil, err
	}

	active, err := s.entries.List(ctx, repositories.QueueEntryFilter{
		Department: department,
		Statuses:   []entities.QueueStatus{entities.QueueStatusInProgress, entities.QueueStatusWaiting},
	})
	if err != nil {
		return nil, err
	}

	serving := lo.Filter(active, func(e *entities.QueueEntry, _ int) bool {
		return e.Status == entities.QueueStatusInProgress
	})
	waiting := lo.Filter(active, func(e *entities.QueueEntry, _ int) bool {
		return e.Status == entities.QueueStatusWaiting
	})

	return &DisplayBoard{
		Department:         department,
		NowServing:         lo.Map(serving, toDisplayTicket),
		Waiting:            lo.Map(waiting, toDisplayTicket),
		WaitingCount:       len(waiting),
		AverageWaitMinutes: s.estimator.HistoricalAverage(ctx, department),
		UpdatedAt:          s.clock.Now(),
	}, nil
}

func toDisplayTicket(e *entities.QueueEntry, _ int) DisplayTicket {
	return DisplayTicket{
		QueueNumber: e.QueueNumber,
		Priority:    e.Priority,
		Status:      e.Status,
		ServerID:    lo.FromPtr(e.ServerID),
		JoinedAt:    e.JoinedAt,
	}
}
