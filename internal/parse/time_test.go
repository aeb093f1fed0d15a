package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacebooking-backend/internal/model"
)

func TestTimeOfDay(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected model.TimeOfDay
		wantErr  bool
	}{
		{name: "Morning", input: "08:00", expected: 480},
		{name: "Single digit hour", input: "8:30", expected: 510},
		{name: "End of day", input: "24:00", expected: 1440},
		{name: "Whitespace", input: " 22:15 ", expected: 1335},
		{name: "Past end of day", input: "24:30", wantErr: true},
		{name: "Bad minutes", input: "10:60", wantErr: true},
		{name: "No colon", input: "1000", wantErr: true},
		{name: "Empty", input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := TimeOfDay(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestDate(t *testing.T) {
	loc := time.FixedZone("EET", 2*3600)

	got, err := Date("2030-03-04", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 3, 4, 0, 0, 0, 0, loc), got)

	_, err = Date("04/03/2030", loc)
	assert.Error(t, err)
}

func TestInstant(t *testing.T) {
	loc := time.FixedZone("EET", 2*3600)

	got, err := Instant("2030-03-04T10:00:00Z", loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)))

	got, err = Instant("2030-03-04T10:00", loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2030, 3, 4, 8, 0, 0, 0, time.UTC)), "offsetless input is local wall time")

	_, err = Instant("tomorrow", loc)
	assert.Error(t, err)
}
