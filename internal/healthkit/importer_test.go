package healthkit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/shared"
	tu "github.com/desertthunder/cadence/internal/testing"
)

func TestImporter(t *testing.T) {
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	user, err := repositories.NewUserRepository(db).Ensure("health@example.com", "Health", "UTC")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	symptoms := repositories.NewSymptomRepository(db)
	cycles := repositories.NewCycleRepository(db)

	existing := models.NewSymptomLog(user.ID(), "2024-01-02")
	existing.Mood = 4
	existing.Notes = "tired"
	if err := symptoms.Upsert(existing); err != nil {
		t.Fatalf("failed to seed symptom log: %v", err)
	}

	importer := NewImporter(symptoms, cycles, tu.NewTestLogger())

	t.Run("Import", func(t *testing.T) {
		result, err := importer.Import(context.Background(), user.ID(), strings.NewReader(sampleExport()), nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Days != 15 || result.Updated != 13 || len(result.Periods) != 3 {
			t.Errorf("unexpected result %+v", result)
		}

		params, err := cycles.Get(user.ID())
		if err != nil {
			t.Fatalf("expected cycle params, got %v", err)
		}
		if params.CycleLength != 28 || params.PeriodLength != 5 || shared.FormatDay(params.LastPeriodStart) != "2024-02-26" {
			t.Errorf("unexpected params %+v", params)
		}
	})

	t.Run("Keeps Logged Fields", func(t *testing.T) {
		log, err := symptoms.Get(user.ID(), "2024-01-02")
		if err != nil {
			t.Fatalf("expected log, got %v", err)
		}
		if log.Flow != models.FlowHeavy || log.Mood != 4 || log.Notes != "tired" {
			t.Errorf("unexpected log %+v", log)
		}
	})

	t.Run("Does Not Store Empty Days", func(t *testing.T) {
		if _, err := symptoms.Get(user.ID(), "2024-01-15"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected no row for a day without flow, got %v", err)
		}
	})

	t.Run("Reimport Is Idempotent", func(t *testing.T) {
		result, err := importer.Import(context.Background(), user.ID(), strings.NewReader(sampleExport()), nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Updated != 0 {
			t.Errorf("expected no updates, got %d", result.Updated)
		}
	})

	t.Run("No Periods", func(t *testing.T) {
		doc := "<HealthData>" + flowRecord("None", "2024-05-01 08:00:00 +0000") + "</HealthData>"
		result, err := importer.Import(context.Background(), user.ID(), strings.NewReader(doc), nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Params != nil {
			t.Errorf("expected params to be left alone, got %+v", result.Params)
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := importer.Import(ctx, user.ID(), strings.NewReader(sampleExport()), nil); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("Missing User", func(t *testing.T) {
		if _, err := importer.Import(context.Background(), "", strings.NewReader(sampleExport()), nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
