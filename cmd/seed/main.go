package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/scheduling-engine/internal/availability"
	"github.com/clinicdesk/scheduling-engine/internal/db"
	"github.com/clinicdesk/scheduling-engine/internal/waitlist"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctors, err := seedDoctors(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 5000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedSchedules(context.Background(), pool, doctors); err != nil {
		log.Fatalf("seed schedules: %v", err)
	}
	if err := seedWaitlist(context.Background(), pool, doctors, 300); err != nil {
		log.Fatalf("seed waitlist: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Odontologia General",
		"Ortodoncia",
		"Endodoncia",
		"Periodoncia",
		"Cirugia Oral",
		"Odontopediatria",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email(), gofakeit.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	return nil
}

// seedSchedules gives every doctor a Monday-Friday template plus a recurring
// lunch block. Some doctors get a Saturday morning.
func seedSchedules(ctx context.Context, pool *pgxpool.Pool, doctors []uuid.UUID) error {
	log.Printf("seeding schedules for %d doctors", len(doctors))

	repo := availability.NewPgRepository(pool)

	for _, doctorID := range doctors {
		for wd := time.Monday; wd <= time.Friday; wd++ {
			_, err := repo.UpsertWeekdayTemplate(ctx, availability.WeekdayTemplate{
				DoctorID:     doctorID,
				Weekday:      wd,
				IsWorkingDay: true,
				Intervals: []availability.TimeRange{
					{StartMins: 9 * 60, EndMins: 13 * 60},
					{StartMins: 14 * 60, EndMins: 18 * 60},
				},
				DefaultDurationMins: 30,
				IsActive:            true,
			})
			if err != nil {
				return err
			}
		}

		if gofakeit.Bool() {
			_, err := repo.UpsertWeekdayTemplate(ctx, availability.WeekdayTemplate{
				DoctorID:            doctorID,
				Weekday:             time.Saturday,
				IsWorkingDay:        true,
				Intervals:           []availability.TimeRange{{StartMins: 9 * 60, EndMins: 13 * 60}},
				DefaultDurationMins: 30,
				IsActive:            true,
			})
			if err != nil {
				return err
			}
		}

		lunchStart := time.Date(2025, 1, 6, 13, 0, 0, 0, time.UTC)
		_, err := repo.CreateBlock(ctx, availability.TimeBlock{
			DoctorID: doctorID,
			Kind:     availability.BlockLunch,
			Title:    "Almuerzo",
			Start:    lunchStart,
			End:      lunchStart.Add(time.Hour),
			Recurrence: &availability.Recurrence{
				Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
				Until:    lunchStart.AddDate(1, 0, 0),
			},
			IsActive: true,
		})
		if err != nil {
			return err
		}
	}

	log.Println("schedules seeded")
	return nil
}

func seedWaitlist(ctx context.Context, pool *pgxpool.Pool, doctors []uuid.UUID, count int) error {
	log.Printf("seeding %d waitlist entries", count)

	repo := waitlist.NewPgRepository(pool)
	priorities := []waitlist.Priority{
		waitlist.PriorityUrgent, waitlist.PriorityHigh,
		waitlist.PriorityNormal, waitlist.PriorityNormal, waitlist.PriorityLow,
	}
	procedures := []string{"limpieza", "consulta", "procedimiento", "seguimiento"}

	for i := 0; i < count; i++ {
		entry := waitlist.Entry{
			DoctorID:              doctors[gofakeit.Number(0, len(doctors)-1)],
			PatientName:           gofakeit.Name(),
			PatientPhone:          gofakeit.Phone(),
			ProcedureType:         procedures[gofakeit.Number(0, len(procedures)-1)],
			EstimatedDurationMins: []int{15, 30, 30, 45, 60}[gofakeit.Number(0, 4)],
			Priority:              priorities[gofakeit.Number(0, len(priorities)-1)],
			Status:                waitlist.StatusWaiting,
		}

		if gofakeit.Bool() {
			entry.PreferredDays = []time.Weekday{
				time.Weekday(gofakeit.Number(1, 5)),
				time.Weekday(gofakeit.Number(1, 5)),
			}
		}
		if gofakeit.Bool() {
			start := gofakeit.Number(9, 15) * 60
			end := start + gofakeit.Number(2, 4)*60
			entry.PreferredStartMins = &start
			entry.PreferredEndMins = &end
		}

		if _, err := repo.Create(ctx, entry); err != nil {
			return err
		}
	}

	log.Println("waitlist seeded")
	return nil
}
