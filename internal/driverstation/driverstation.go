// Package driverstation tracks the match state pushed by the field server.
package driverstation

import (
	"strings"
	"sync"
	"time"

	"github.com/Speshl/gorrc_frc/internal/models"
)

const DefaultTimeout = 500 * time.Millisecond

type Alliance int

const (
	Red Alliance = iota
	Blue
)

func (a Alliance) String() string {
	switch a {
	case Red:
		return "red"
	case Blue:
		return "blue"
	default:
		return "unknown"
	}
}

type Mode string

const (
	ModeDisabled   Mode = "disabled"
	ModeTeleop     Mode = "teleop"
	ModeAutonomous Mode = "autonomous"
	ModeTest       Mode = "test"
)

// ParseMode accepts any case and surrounding whitespace.
func ParseMode(mode string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(mode))); m {
	case ModeDisabled, ModeTeleop, ModeAutonomous, ModeTest:
		return m, true
	default:
		return ModeDisabled, false
	}
}

// ParseAlliance returns false for an empty or unknown alliance.
func ParseAlliance(alliance string) (Alliance, bool) {
	switch strings.ToLower(strings.TrimSpace(alliance)) {
	case "red":
		return Red, true
	case "blue":
		return Blue, true
	default:
		return Red, false
	}
}

// AllianceSource is what subsystems need from the driver station.
type AllianceSource interface {
	IsDisabled() bool
	GetAlliance() (Alliance, bool)
}

var _ AllianceSource = (*Station)(nil)

// Station holds the last driver station state. It reports disabled when the
// field server has gone quiet for longer than the timeout.
type Station struct {
	lock       sync.RWMutex
	state      models.DriverStationState
	lastUpdate time.Time
	timeout    time.Duration
	now        func() time.Time
}

func NewStation(timeout time.Duration) *Station {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Station{
		timeout: timeout,
		now:     time.Now,
	}
}

func (s *Station) Update(state models.DriverStationState) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.state = state
	s.lastUpdate = s.now()
}

func (s *Station) IsDisabled() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return !s.enabledLocked()
}

func (s *Station) IsEnabled() bool {
	return !s.IsDisabled()
}

// enabledLocked reports false for unknown modes.
func (s *Station) enabledLocked() bool {
	if s.lastUpdate.IsZero() || s.now().Sub(s.lastUpdate) > s.timeout {
		return false
	}
	mode, ok := ParseMode(s.state.Mode)
	return ok && s.state.Enabled && mode != ModeDisabled
}

// GetAlliance returns false until the field server has assigned an alliance.
func (s *Station) GetAlliance() (Alliance, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return ParseAlliance(s.state.Alliance)
}

// Mode is the active match mode, ModeDisabled whenever the robot is disabled.
func (s *Station) Mode() Mode {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if !s.enabledLocked() {
		return ModeDisabled
	}
	mode, _ := ParseMode(s.state.Mode)
	return mode
}

func (s *Station) IsAutonomous() bool {
	return s.Mode() == ModeAutonomous
}

func (s *Station) IsTeleop() bool {
	return s.Mode() == ModeTeleop
}
