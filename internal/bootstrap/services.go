package bootstrap

import (
	"fmt"

	"github.com/zatekoja/hospitalqueue/internal/application/services"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
	"github.com/zatekoja/hospitalqueue/pkg/config"
)

// Services is the wired application layer
type Services struct {
	Departments   *entities.DepartmentSet
	Events        *services.EventDispatcher
	Estimator     *services.WaitTimeEstimator
	Queue         *services.QueueService
	Dispatch      *services.DispatchService
	LabGate       *services.LabGateService
	LabRequests   *services.LabRequestService
	Patients      *services.PatientService
	Display       *services.DisplayService
	Notifications *services.NotificationService
}

// NewServices wires the services over repos. The event dispatcher is
// created but not started.
func NewServices(
	cfg *config.Config,
	repos *Repositories,
	bus providers.EventBus,
	cacheProvider providers.CacheProvider,
	sender providers.SMSSender,
	clk clock.Clock,
	metrics *observability.Metrics,
) (*Services, error) {
	loc, err := cfg.Queue.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid queue timezone: %w", err)
	}

	departments := entities.NewDepartmentSet(cfg.Queue.Departments)
	if _, ok := departments.Resolve(cfg.Queue.DefaultDepartment); !ok {
		return nil, fmt.Errorf("default department %q is not in the department list", cfg.Queue.DefaultDepartment)
	}

	notifications := services.NewNotificationService(repos.Patients, repos.Notifications, sender, clk, metrics)
	dispatcher := services.NewEventDispatcher(bus, notifications, cfg.Queue.EventBufferSize, cfg.Queue.EventWorkers, metrics)

	estimator := services.NewWaitTimeEstimator(
		repos.QueueEntries,
		cacheProvider,
		clk,
		loc,
		cfg.Queue.AverageServiceMinutes,
		cfg.Queue.StatsCacheTTL,
	)
	tickets := services.NewTicketNumberGenerator(repos.QueueEntries, clk, loc, cfg.Queue.MaxNumberAttempts)
	cards := services.NewCardNumberGenerator(repos.Patients, repos.Appointments, cfg.Queue.MaxNumberAttempts)

	queue := services.NewQueueService(
		repos.QueueEntries,
		repos.Patients,
		tickets,
		estimator,
		departments,
		dispatcher,
		clk,
		cfg.Queue.MaxCheckInAttempts,
		metrics,
	)

	return &Services{
		Departments: departments,
		Events:      dispatcher,
		Estimator:   estimator,
		Queue:       queue,
		Dispatch: services.NewDispatchService(
			repos.QueueEntries,
			departments,
			cfg.Queue.DefaultDepartment,
			dispatcher,
			clk,
			cfg.Queue.MaxDispatchAttempts,
			metrics,
		),
		LabGate:       services.NewLabGateService(repos.QueueEntries, dispatcher, clk, metrics),
		LabRequests:   services.NewLabRequestService(repos.LabRequests, repos.QueueEntries, dispatcher, clk),
		Patients:      services.NewPatientService(repos.Patients, cards, clk, cfg.Queue.MaxCheckInAttempts),
		Display:       services.NewDisplayService(repos.QueueEntries, queue, estimator, clk),
		Notifications: notifications,
	}, nil
}
