package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/zatekoja/hospitalqueue/internal/api/middleware"
	"github.com/zatekoja/hospitalqueue/internal/application/services"
	"github.com/zatekoja/hospitalqueue/internal/bootstrap"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
	"github.com/zatekoja/hospitalqueue/pkg/config"
)

// seed creates one doctor per department, a lab technician and a few demo
// patients, then prints a bearer token for every staff member.
func main() {
	var patients int
	var tokenTTL time.Duration

	flag.IntVar(&patients, "patients", 5, "Number of demo patients to register")
	flag.DurationVar(&tokenTTL, "token-ttl", 0, "Token lifetime (defaults to JWT_TTL_HOURS)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if tokenTTL <= 0 {
		tokenTTL = cfg.Auth.TokenTTL
	}
	if cfg.Store.Driver == "memory" {
		log.Warn().Msg("STORE_DRIVER=memory: seeded records vanish when this command exits; only the tokens are useful")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	repos, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	now := time.Now()
	staff := demoStaff(cfg.Queue.Departments, now)
	for _, s := range staff {
		if err := repos.Staff.Create(ctx, s); err != nil {
			log.Fatal().Err(err).Str("staff_id", s.ID).Msg("Failed to create staff member")
		}
	}

	patientService := services.NewPatientService(
		repos.Patients,
		services.NewCardNumberGenerator(repos.Patients, repos.Appointments, cfg.Queue.MaxNumberAttempts),
		clock.Real(),
		cfg.Queue.MaxCheckInAttempts,
	)
	for i := 1; i <= patients; i++ {
		p, err := patientService.Register(ctx, services.RegisterPatientRequest{
			FullName: fmt.Sprintf("Demo Patient %d", i),
			Phone:    fmt.Sprintf("+2348000000%03d", i),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to register patient")
		}
		fmt.Printf("patient  %-12s %s\n", p.CardNumber, p.FullName)
	}

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, repos.Staff)
	for _, s := range staff {
		token, err := auth.IssueToken(s, now, tokenTTL)
		if err != nil {
			log.Fatal().Err(err).Str("staff_id", s.ID).Msg("Failed to issue token")
		}
		fmt.Printf("%-15s %-20s %-18s %s\n", s.Role, s.ID, s.Department, token)
	}
}

func demoStaff(departments []string, now time.Time) []*entities.Server {
	clinical := lo.Filter(departments, func(d string, _ int) bool {
		return !strings.EqualFold(d, "Laboratory")
	})

	staff := lo.Map(clinical, func(d string, i int) *entities.Server {
		return &entities.Server{
			ID:         "doctor-" + strings.ToLower(services.DepartmentCode(d)),
			Name:       fmt.Sprintf("Doctor %d", i+1),
			Role:       entities.RoleDoctor,
			Department: d,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	})
	return append(staff, &entities.Server{
		ID:         "labtech-1",
		Name:       "Lab Technician",
		Role:       entities.RoleLabTechnician,
		Department: "Laboratory",
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}
