package robot

import (
	"time"

	"github.com/Speshl/gorrc_frc/internal/autobuilder"
	"github.com/Speshl/gorrc_frc/internal/models"
)

func (r *Robot) updateStatus(now time.Time) {
	state := r.drivetrain.GetState()
	algae := r.algae.Status()

	alliance := "unknown"
	if a, ok := r.ds.GetAlliance(); ok {
		alliance = a.String()
	}

	activeSeats := make([]bool, len(r.seats))
	for i, seat := range r.seats {
		activeSeats[i] = seat.IsActive()
	}

	status := models.RobotStatus{
		Name:           r.cfg.RobotCfg.Name,
		Team:           r.cfg.RobotCfg.Team,
		Sim:            r.cfg.RobotCfg.Sim,
		Mode:           string(r.lastMode),
		Enabled:        r.ds.IsEnabled(),
		Alliance:       alliance,
		X:              state.Pose.X(),
		Y:              state.Pose.Y(),
		HeadingDeg:     state.Pose.Rotation.Degrees(),
		Vx:             state.Speeds.Vx,
		Vy:             state.Speeds.Vy,
		Omega:          state.Speeds.Omega,
		VisionTargets:  len(r.drivetrain.VisionResults()),
		AlgaeAngleDeg:  float64(algae.Angle),
		AlgaeIntakeRPM: float64(algae.IntakeSpeed),
		HasAlgae:       algae.HasAlgae,
		AutoConfigured: autobuilder.IsConfigured(),
		ActiveSeats:    activeSeats,
		BatteryVolts:   r.battery.Voltage(),
		UpdatedAt:      now,
	}

	r.statusLock.Lock()
	r.status = status
	r.statusLock.Unlock()
}

// Status is the snapshot taken at the end of the last robot loop.
func (r *Robot) Status() models.RobotStatus {
	r.statusLock.RLock()
	defer r.statusLock.RUnlock()
	return r.status
}
