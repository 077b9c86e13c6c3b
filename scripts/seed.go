package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/infrastructure/clients/postgres"
	"github.com/bookline/videomeet/pkg/config"
)

// Seeds a local database with a demo business: staff members, services with
// different video settings, and upcoming appointments in every meeting state
// the worker can produce. Run with RESET_DB=true to truncate first.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	db := goqu.New("postgres", pgClient.DB())
	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				appointments,
				connections,
				services,
				staff_members
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	now := time.Now()
	businessID := uuid.New().String()

	// 1. Seed staff members
	staff := []entities.StaffMember{
		{ID: uuid.New().String(), BusinessID: businessID, Name: "Ada Obi", Email: "ada@demo.bookline.dev", Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), BusinessID: businessID, Name: "Tunde Bakare", Email: "tunde@demo.bookline.dev", Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), BusinessID: businessID, Name: "Chiamaka Eze", Email: "chiamaka@demo.bookline.dev", Active: false, CreatedAt: now, UpdatedAt: now},
	}
	for _, s := range staff {
		if err := insert(ctx, db, "staff_members", s); err != nil {
			log.Printf("Failed to create staff member %s: %v", s.Name, err)
		}
	}

	// 2. Seed services with different video settings
	services := []entities.Service{
		{ID: uuid.New().String(), BusinessID: businessID, Name: "Video Consultation (Zoom)", VideoEnabled: true, VideoProvider: "zoom", CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), BusinessID: businessID, Name: "Video Consultation (Meet)", VideoEnabled: true, VideoProvider: "meet", CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), BusinessID: businessID, Name: "In-Person Visit", VideoEnabled: false, VideoProvider: "none", CreatedAt: now, UpdatedAt: now},
	}
	for _, svc := range services {
		if err := insert(ctx, db, "services", svc); err != nil {
			log.Printf("Failed to create service %s: %v", svc.Name, err)
		}
	}

	// 3. Seed appointments: one pending provisioning, one already created,
	// one failed and re-attemptable, one non-video.
	meetingID := "981234567"
	joinURL := "https://zoom.us/j/981234567"
	tomorrow := now.Add(24 * time.Hour).Truncate(time.Hour)
	appointments := []entities.Appointment{
		{
			ID: uuid.New().String(), BusinessID: businessID,
			StaffMemberID: &staff[0].ID, ServiceID: services[0].ID,
			StartTime: tomorrow, EndTime: tomorrow.Add(30 * time.Minute),
			Timezone: "Africa/Lagos", Title: "Intro consultation",
			MeetingProvider: entities.MeetingProviderNone,
			MeetingStatus:   entities.MeetingStatusNotCreated,
			CreatedAt:       now, UpdatedAt: now,
		},
		{
			ID: uuid.New().String(), BusinessID: businessID,
			StaffMemberID: &staff[0].ID, ServiceID: services[0].ID,
			StartTime: tomorrow.Add(time.Hour), EndTime: tomorrow.Add(time.Hour + 45*time.Minute),
			Timezone: "Africa/Lagos", Title: "Follow-up call",
			MeetingID: &meetingID, JoinURL: &joinURL,
			MeetingProvider: entities.MeetingProviderZoom,
			MeetingStatus:   entities.MeetingStatusCreated,
			CreatedAt:       now, UpdatedAt: now,
		},
		{
			ID: uuid.New().String(), BusinessID: businessID,
			StaffMemberID: &staff[1].ID, ServiceID: services[1].ID,
			StartTime: tomorrow.Add(2 * time.Hour), EndTime: tomorrow.Add(2*time.Hour + 30*time.Minute),
			Timezone: "Africa/Lagos", Title: "Planning session",
			MeetingProvider: entities.MeetingProviderNone,
			MeetingStatus:   entities.MeetingStatusFailed,
			CreatedAt:       now, UpdatedAt: now,
		},
		{
			ID: uuid.New().String(), BusinessID: businessID,
			StaffMemberID: &staff[1].ID, ServiceID: services[2].ID,
			StartTime: tomorrow.Add(3 * time.Hour), EndTime: tomorrow.Add(3*time.Hour + 30*time.Minute),
			Timezone: "Africa/Lagos", Title: "On-site visit",
			MeetingProvider: entities.MeetingProviderNone,
			MeetingStatus:   entities.MeetingStatusNotCreated,
			CreatedAt:       now, UpdatedAt: now,
		},
	}
	for _, appt := range appointments {
		if err := insert(ctx, db, "appointments", appt); err != nil {
			log.Printf("Failed to create appointment %s: %v", appt.Title, err)
		}
	}

	log.Printf("Seeded business %s: %d staff, %d services, %d appointments",
		businessID, len(staff), len(services), len(appointments))
	log.Println("Connect a provider via GET /api/oauth/{provider}/authorize before provisioning meetings")
}

func insert(ctx context.Context, db *goqu.Database, table string, row interface{}) error {
	query, args, err := db.Insert(table).Rows(row).ToSQL()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query, args...)
	return err
}
