package ics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReferenceTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "2024-06-12T15:00:00Z", want: time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)},
		{in: "2024-06-12T17:00:00+02:00", want: time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)},
		{in: "2024-06-12T15:00:00.123456+00:00", want: time.Date(2024, 6, 12, 15, 0, 0, 123456000, time.UTC)},
		{in: "2024-06-12T15:00:00", want: time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)},
		{in: "2024-06-12 15:00:00", want: time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)},
		{in: "2024-06-12T15:00", want: time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)},
		{in: "2024-06-12", want: time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)},
		{in: "2024-06-10T01:00:00+0200", want: time.Date(2024, 6, 9, 23, 0, 0, 0, time.UTC)},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseReferenceTime(tc.in)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseReferenceTime_Empty(t *testing.T) {
	before := time.Now().UTC()
	got, err := ParseReferenceTime("   ")
	require.NoError(t, err)
	assert.WithinDuration(t, before, got, 5*time.Second)
}

func TestParseReferenceTime_Invalid(t *testing.T) {
	for _, in := range []string{"tomorrow", "2024-13-01", "12/06/2024", "2024-06-12T25:00:00"} {
		_, err := ParseReferenceTime(in)
		require.Error(t, err, in)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr), in)
		assert.Equal(t, in, verr.Input)
	}
}

func TestWeekStart(t *testing.T) {
	monday := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{name: "wednesday", in: wednesday, want: monday},
		{name: "monday midnight", in: monday, want: monday},
		{name: "sunday late", in: time.Date(2024, 6, 16, 23, 59, 59, 0, time.UTC), want: monday},
		{name: "next monday", in: time.Date(2024, 6, 17, 0, 0, 1, 0, time.UTC), want: monday.AddDate(0, 0, 7)},
		{name: "offset crosses into sunday", in: time.Date(2024, 6, 10, 1, 0, 0, 0, time.FixedZone("", 2*3600)), want: monday.AddDate(0, 0, -7)},
		{name: "month boundary", in: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), want: time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := WeekStart(tc.in)
			assert.True(t, tc.want.Equal(got), "got %s", got)
			assert.Equal(t, time.Monday, got.Weekday())
		})
	}
}
