package driverstation

import (
	"context"
	"testing"
	"time"

	"github.com/Speshl/gorrc_frc/internal/models"
	"github.com/stretchr/testify/assert"
)

func newTestStation(now *time.Time) *Station {
	s := NewStation(500 * time.Millisecond)
	s.now = func() time.Time { return *now }
	return s
}

func TestStationStartsDisabledWithoutAlliance(t *testing.T) {
	now := time.Unix(1000, 0)
	s := newTestStation(&now)

	assert.True(t, s.IsDisabled())
	_, ok := s.GetAlliance()
	assert.False(t, ok)
	assert.Equal(t, ModeDisabled, s.Mode())
}

func TestStationAlliance(t *testing.T) {
	now := time.Unix(1000, 0)
	s := newTestStation(&now)

	s.Update(models.DriverStationState{Alliance: "RED"})
	alliance, ok := s.GetAlliance()
	assert.True(t, ok)
	assert.Equal(t, Red, alliance)

	s.Update(models.DriverStationState{Alliance: "blue"})
	alliance, ok = s.GetAlliance()
	assert.True(t, ok)
	assert.Equal(t, Blue, alliance)
	assert.Equal(t, "blue", alliance.String())
}

func TestStationModes(t *testing.T) {
	now := time.Unix(1000, 0)
	s := newTestStation(&now)

	s.Update(models.DriverStationState{Enabled: true, Mode: "autonomous"})
	assert.False(t, s.IsDisabled())
	assert.True(t, s.IsAutonomous())

	s.Update(models.DriverStationState{Enabled: true, Mode: "teleop"})
	assert.True(t, s.IsTeleop())

	s.Update(models.DriverStationState{Enabled: true, Mode: "disabled"})
	assert.True(t, s.IsDisabled())

	s.Update(models.DriverStationState{Enabled: false, Mode: "teleop"})
	assert.True(t, s.IsDisabled())
	assert.Equal(t, ModeDisabled, s.Mode())
}

func TestStationModeParsing(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		expected Mode
	}{
		{name: "teleop", mode: "teleop", expected: ModeTeleop},
		{name: "upper case autonomous", mode: "AUTONOMOUS", expected: ModeAutonomous},
		{name: "padded test", mode: " Test ", expected: ModeTest},
		{name: "abbreviated auto", mode: "auto", expected: ModeDisabled},
		{name: "empty", mode: "", expected: ModeDisabled},
		{name: "unknown", mode: "practice", expected: ModeDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Unix(1000, 0)
			s := newTestStation(&now)

			s.Update(models.DriverStationState{Enabled: true, Mode: tt.mode, Alliance: "blue"})
			assert.Equal(t, tt.expected, s.Mode())
			assert.Equal(t, tt.expected == ModeDisabled, s.IsDisabled())
		})
	}
}

func TestParseAlliance(t *testing.T) {
	tests := []struct {
		alliance string
		expected Alliance
		ok       bool
	}{
		{alliance: "red", expected: Red, ok: true},
		{alliance: "Red", expected: Red, ok: true},
		{alliance: " BLUE", expected: Blue, ok: true},
		{alliance: "", ok: false},
		{alliance: "green", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.alliance, func(t *testing.T) {
			alliance, ok := ParseAlliance(tt.alliance)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, alliance)
			}
		})
	}
}

func TestStationGoesDisabledWhenStale(t *testing.T) {
	now := time.Unix(1000, 0)
	s := newTestStation(&now)

	s.Update(models.DriverStationState{Enabled: true, Mode: "teleop", Alliance: "red"})
	assert.True(t, s.IsEnabled())

	now = now.Add(501 * time.Millisecond)
	assert.True(t, s.IsDisabled())

	// alliance survives a stale link
	_, ok := s.GetAlliance()
	assert.True(t, ok)
}

func TestSimSourceKeepsStationFresh(t *testing.T) {
	station := NewStation(50 * time.Millisecond)
	sim := NewSimSource(station, 10*time.Millisecond)
	sim.Set(models.DriverStationState{Enabled: true, Mode: "teleop", Alliance: "red"})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sim.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, ModeTeleop, station.Mode())
	alliance, ok := station.GetAlliance()
	assert.True(t, ok)
	assert.Equal(t, Red, alliance)

	assert.ErrorIs(t, <-done, context.DeadlineExceeded)
}
