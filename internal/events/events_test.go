package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacebooking-backend/internal/model"
)

func TestFromBooking(t *testing.T) {
	cairo := time.FixedZone("EET", 2*3600)
	b := &model.Booking{
		ID: 9, Code: "BK-1", ResourceID: 4,
		PartyKind: model.PartyMember, PartyID: 7,
		Status:      model.StatusCancelled,
		TotalPrice:  decimal.NewFromInt(50),
		CreditsUsed: decimal.NewFromInt(2),
		Currency:    "EGP",

		CancellationReason: "sick",
	}
	e := FromBooking(BookingCancelled, b, time.Date(2030, 1, 1, 12, 0, 0, 0, cairo))

	assert.Equal(t, "booking.cancelled", e.RoutingKey())
	assert.Equal(t, model.Party{Kind: model.PartyMember, ID: 7}, e.Party)
	assert.Equal(t, time.UTC, e.OccurredAt.Location())
	assert.Equal(t, "sick", e.Reason)

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"credits_used":"2"`)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
