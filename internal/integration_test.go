package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacebooking-backend/config"
	"spacebooking-backend/internal/api"
	"spacebooking-backend/internal/availability"
	"spacebooking-backend/internal/booking"
	"spacebooking-backend/internal/catalog"
	"spacebooking-backend/internal/credit"
	"spacebooking-backend/internal/db/dbtest"
	"spacebooking-backend/internal/events"
	"spacebooking-backend/internal/model"
	"spacebooking-backend/internal/party"
	"spacebooking-backend/internal/pricing"
	"spacebooking-backend/internal/registry"
	"spacebooking-backend/internal/store"
)

const testCatalog = `
resources:
  - name: Focus Room
    type: room
    opens_at: "08:00"
    closes_at: "20:00"
    buffer_minutes: 15
    min_booking_minutes: 30
    hourly_rate: "50"
    pricing_rules:
      - plan_id: 10
        free_hours_monthly: "2"
  - name: Corner Office
    type: office
    capacity: 4
    min_booking_minutes: 1440
    monthly_rate: "9000"
    requires_approval: true
`

type published struct {
	types []string
}

func (p *published) Publish(_ context.Context, e events.Event) error {
	p.types = append(p.types, e.Type)
	return nil
}

func (p *published) Close() error { return nil }

func post(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// TestBookingLifecycle wires every component the way the daemon does and
// drives a member booking with free monthly hours and an approval-gated
// office booking over HTTP.
func TestBookingLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000

	gdb := dbtest.New(t)
	plan := int64(10)
	require.NoError(t, gdb.Create(&model.User{ID: 1, Name: "Walk-in"}).Error)
	require.NoError(t, gdb.Create(&model.Member{ID: 2, Name: "Resident", PlanID: &plan, Active: true}).Error)

	appStore := store.NewGormStore(gdb)
	resources := registry.New(appStore, time.Minute, log)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))
	n, err := catalog.NewService(resources, cfg.Booking.DefaultCurrency, log).Sync(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	room, office := lookup(t, resources, "focus-room"), lookup(t, resources, "corner-office")

	directory := party.NewDirectory(appStore)
	ledger := credit.New(appStore, log)
	avail := availability.New(appStore, cfg.Booking.Location, nil)
	prices := pricing.New(directory, ledger, cfg.Booking.Location, cfg.Pricing.HourlyIncrementMinutes, cfg.Booking.DefaultCurrency)
	pub := &published{}
	manager := booking.NewManager(booking.Deps{
		Store:        appStore,
		Resources:    resources,
		Parties:      directory,
		Availability: avail,
		Pricing:      prices,
		Credits:      ledger,
		Events:       pub,
		Clock:        clockwork.NewFakeClockAt(time.Date(2030, 3, 1, 8, 0, 0, 0, time.UTC)),
		Codes:        booking.UUIDCodes(cfg.Booking.CodePrefix),
		Log:          log,
	}, booking.Config{
		CancellationWindow: cfg.Booking.CancellationWindow,
		Location:           cfg.Booking.Location,
	})
	router := api.NewRouter(api.NewHandler(api.Services{
		Resources:    resources,
		Availability: avail,
		Pricing:      prices,
		Bookings:     manager,
		Credits:      ledger,
	}, cfg.Booking.Location, cfg.Booking.DefaultSlotMinutes, log), cfg.Server, log)

	// Three hours at 50/h, two of them covered by the plan's free hours.
	w := post(t, router, "/api/bookings", gin.H{
		"resource_id": room.ID,
		"party":       gin.H{"kind": "member", "id": 2},
		"start":       "2030-03-04T09:00:00Z",
		"end":         "2030-03-04T12:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var memberBooking model.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &memberBooking))
	assert.True(t, memberBooking.CreditsUsed.Equal(decimal.NewFromInt(2)), "credits %s", memberBooking.CreditsUsed)
	assert.True(t, memberBooking.TotalPrice.Equal(decimal.NewFromInt(50)), "total %s", memberBooking.TotalPrice)

	w = get(router, "/api/members/2/credits?resource_type=room&date=2030-03-04")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":"0"`)

	w = post(t, router, "/api/bookings/"+itoa(memberBooking.ID)+"/cancel", gin.H{"reason": "travel"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"credits_refunded":"2"`)

	w = get(router, "/api/members/2/credits?resource_type=room&date=2030-03-04")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":"2"`)

	// Offices bill by the month and wait for approval.
	w = post(t, router, "/api/bookings", gin.H{
		"resource_id": office.ID,
		"party":       gin.H{"kind": "user", "id": 1},
		"start":       "2030-03-04T00:00:00Z",
		"end":         "2030-04-03T00:00:00Z",
		"attendees":   3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var officeBooking model.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &officeBooking))
	assert.Equal(t, model.StatusPending, officeBooking.Status)
	assert.Equal(t, model.PriceUnitMonth, officeBooking.PriceUnit)
	assert.True(t, officeBooking.TotalPrice.Equal(decimal.NewFromInt(9000)))

	// A pending booking already blocks the office.
	w = post(t, router, "/api/bookings", gin.H{
		"resource_id": office.ID,
		"party":       gin.H{"kind": "member", "id": 2},
		"start":       "2030-03-10T00:00:00Z",
		"end":         "2030-03-11T00:00:00Z",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(t, router, "/api/bookings/"+itoa(officeBooking.ID)+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"confirmed"`)

	assert.Equal(t, []string{
		events.BookingCreated,
		events.BookingCancelled,
		events.BookingCreated,
		events.BookingConfirmed,
	}, pub.types)
}

func lookup(t *testing.T, r *registry.Registry, slug string) model.Resource {
	t.Helper()
	all, err := r.List(context.Background(), store.ResourceFilter{})
	require.NoError(t, err)
	for _, res := range all {
		if res.Slug == slug {
			return res
		}
	}
	t.Fatalf("resource %q not synced", slug)
	return model.Resource{}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
