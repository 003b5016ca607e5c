package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/surveyhive/go-survey-backend/internal/domain"
)

func newStatsDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedStatsInstance(t *testing.T, db *gorm.DB, id, surveyID, status string, startedAt time.Time) {
	t.Helper()
	inst := &domain.ResponseInstance{
		ID:           id,
		SurveyID:     surveyID,
		RespondentID: id,
		Status:       status,
		StartedAt:    startedAt,
	}
	if err := db.Create(inst).Error; err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestCountInstances_PerState(t *testing.T) {
	db := newStatsDB(t, &domain.ResponseInstance{})
	now := time.Now().UTC()

	seedStatsInstance(t, db, "i1", "s1", domain.InstanceCompleted, now)
	seedStatsInstance(t, db, "i2", "s1", domain.InstanceCompleted, now)
	seedStatsInstance(t, db, "i3", "s1", domain.InstanceInProgress, now)
	seedStatsInstance(t, db, "i4", "s1", domain.InstanceNotStarted, now)
	seedStatsInstance(t, db, "ix", "s2", domain.InstanceCompleted, now)

	counts, err := CountInstances(context.Background(), db, "s1")
	if err != nil {
		t.Fatalf("CountInstances: %v", err)
	}
	if counts.Total != 4 || counts.Completed != 2 || counts.InProgress != 1 || counts.NotStarted != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestCountInstances_EmptySurvey(t *testing.T) {
	db := newStatsDB(t, &domain.ResponseInstance{})
	counts, err := CountInstances(context.Background(), db, "nothing")
	if err != nil {
		t.Fatalf("CountInstances: %v", err)
	}
	if counts.Total != 0 || counts.Completed != 0 {
		t.Fatalf("expected zero counts, got %+v", counts)
	}
}

func TestCountInstances_Error_NoTable(t *testing.T) {
	db := newStatsDB(t /* no migrations */)
	if _, err := CountInstances(context.Background(), db, "s1"); err == nil {
		t.Fatalf("expected error when table is missing")
	}
}

func TestDailyStartedTimeline_GroupsByUTCDate(t *testing.T) {
	db := newStatsDB(t, &domain.ResponseInstance{})

	d1 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 3, 23, 30, 0, 0, time.UTC)

	seedStatsInstance(t, db, "i1", "s1", domain.InstanceInProgress, d1)
	seedStatsInstance(t, db, "i2", "s1", domain.InstanceCompleted, d1.Add(2*time.Hour))
	seedStatsInstance(t, db, "i3", "s1", domain.InstanceCompleted, d2)
	seedStatsInstance(t, db, "ix", "s2", domain.InstanceCompleted, d1)

	points, err := DailyStartedTimeline(context.Background(), db, "s1")
	if err != nil {
		t.Fatalf("DailyStartedTimeline: %v", err)
	}
	// Days without activity are absent; dates ascend.
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d: %+v", len(points), points)
	}
	if points[0].Date != "2026-03-01" || points[0].Count != 2 {
		t.Fatalf("unexpected first point: %+v", points[0])
	}
	if points[1].Date != "2026-03-03" || points[1].Count != 1 {
		t.Fatalf("unexpected second point: %+v", points[1])
	}
}
