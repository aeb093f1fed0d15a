//go:build integration

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"spacebooking-backend/config"
	"spacebooking-backend/internal/db"
	"spacebooking-backend/internal/model"
)

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "spacebook",
			"POSTGRES_PASSWORD": "spacebook",
			"POSTGRES_DB":       "spacebook",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	gdb, err := db.Init(&config.DatabaseConfig{
		Driver:              "postgres",
		DSN:                 fmt.Sprintf("host=%s port=%s user=spacebook password=spacebook dbname=spacebook sslmode=disable", host, port.Port()),
		MaxOpenConns:        16,
		ExclusionConstraint: true,
	}, []string{"pending", "confirmed"}, log)
	require.NoError(t, err)
	return gdb
}

func pgResource(t *testing.T, s Store) model.Resource {
	t.Helper()
	rate := decimal.NewFromInt(100)
	saved, err := s.UpsertResources(context.Background(), []model.Resource{{
		Slug: "pg-room", Name: "PG Room", Type: model.ResourceRoom,
		BufferMinutes: 15, MinBookingMinutes: 30,
		HourlyRate: &rate, Currency: "EGP", Active: true,
	}})
	require.NoError(t, err)
	return saved[0]
}

func pgBooking(res model.Resource, code string, start, end time.Time) *model.Booking {
	return &model.Booking{
		Code: code, ResourceID: res.ID,
		PartyKind: model.PartyUser, PartyID: 1,
		StartTime: start, EndTime: end, BlockedUntil: end.Add(res.Buffer()),
		Status:    model.StatusConfirmed,
		UnitPrice: decimal.NewFromInt(100), PriceUnit: model.PriceUnitHour,
		Quantity: decimal.NewFromInt(1), TotalPrice: decimal.NewFromInt(100),
		Currency: "EGP", PaymentStatus: model.PaymentUnpaid, Attendees: 1,
	}
}

func TestPostgres_ExclusionConstraintRejectsBufferedOverlap(t *testing.T) {
	gdb := startPostgres(t)
	s := NewGormStore(gdb)
	res := pgResource(t, s)
	start := time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)

	require.NoError(t, gdb.Create(pgBooking(res, "PG-1", start, start.Add(time.Hour))).Error)

	// Bypasses the locked re-validation: only the constraint stands in the way.
	err := gdb.Create(pgBooking(res, "PG-2", start.Add(70*time.Minute), start.Add(2*time.Hour))).Error
	require.Error(t, err)
	assert.ErrorIs(t, translate(err), ErrConflict)

	// Back-to-back after the buffer is fine.
	require.NoError(t, gdb.Create(pgBooking(res, "PG-3", start.Add(75*time.Minute), start.Add(2*time.Hour))).Error)

	// Cancelled bookings leave the constraint's scope.
	cancelled := pgBooking(res, "PG-4", start, start.Add(time.Hour))
	cancelled.Status = model.StatusCancelled
	require.NoError(t, gdb.Create(cancelled).Error)
}

func TestPostgres_ConcurrentCreateBooking(t *testing.T) {
	gdb := startPostgres(t)
	s := NewGormStore(gdb)
	res := pgResource(t, s)
	start := time.Date(2030, 3, 5, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	guard := OverlapQuery{
		ResourceID: res.ID,
		Start:      start.Add(-res.Buffer()),
		End:        end.Add(res.Buffer()),
		Statuses:   model.DefaultBlockingStatuses,
	}

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateBooking(context.Background(), pgBooking(res, fmt.Sprintf("PG-C%d", i), start, end), guard, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrOverlap), errors.Is(err, ErrConflict):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)

	var count int64
	require.NoError(t, gdb.Model(&model.Booking{}).Where("resource_id = ?", res.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
