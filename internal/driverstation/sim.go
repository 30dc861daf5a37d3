package driverstation

import (
	"context"
	"sync"
	"time"

	"github.com/Speshl/gorrc_frc/internal/models"
)

const DefaultSimPeriod = 100 * time.Millisecond

// SimSource stands in for the field server in simulation. It republishes the
// last state it was given so the station never times out.
type SimSource struct {
	lock    sync.Mutex
	state   models.DriverStationState
	station *Station
	period  time.Duration
}

func NewSimSource(station *Station, period time.Duration) *SimSource {
	if period <= 0 {
		period = DefaultSimPeriod
	}
	return &SimSource{
		station: station,
		period:  period,
		state:   models.DriverStationState{Mode: string(ModeDisabled)},
	}
}

func (s *SimSource) Set(state models.DriverStationState) {
	s.lock.Lock()
	s.state = state
	s.lock.Unlock()

	s.station.Update(state)
}

func (s *SimSource) State() models.DriverStationState {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

func (s *SimSource) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.station.Update(s.State())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.station.Update(s.State())
		}
	}
}
