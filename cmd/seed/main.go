package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careloop/clinic-scheduling/internal/db"
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

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	clinicID, err := seedClinic(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed clinic: %v", err)
	}
	if err := seedPractitioners(context.Background(), pool, clinicID, 40); err != nil {
		log.Fatalf("seed practitioners: %v", err)
	}
	if err := seedPatients(context.Background(), pool, clinicID, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedClinic(ctx context.Context, pool *pgxpool.Pool) (uuid.UUID, error) {
	id := uuid.New()
	name := gofakeit.LastName() + " Family Clinic"

	_, err := pool.Exec(ctx, `
		INSERT INTO clinics (id, name, created_at, updated_at)
		VALUES ($1, $2, now(), now())
	`, id, name)
	if err != nil {
		return uuid.Nil, err
	}

	log.Printf("clinic seeded: %s (%s)", name, id)
	return id, nil
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID, count int) error {
	log.Printf("seeding %d practitioners", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO practitioners (id, clinic_id, name, specialties, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, clinicID, name, []string{spec})
		if err != nil {
			return err
		}

		// Weekday hours, Monday through Friday.
		for weekday := 1; weekday <= 5; weekday++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO availability_rules
					(id, practitioner_id, clinic_id, weekday, start_minute, end_minute, kind, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, 'open', now(), now())
			`, uuid.New(), id, clinicID, weekday, 9*60, 17*60)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("practitioners seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID, count int) error {
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
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, clinic_id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, clinicID, name, email)
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

	log.Println("patients seeded")
	return nil
}
