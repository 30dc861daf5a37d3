package robot

import (
	"fmt"
	"time"

	"github.com/Speshl/gorrc_frc/internal/controls"
	"github.com/Speshl/gorrc_frc/internal/geometry"
	"github.com/Speshl/gorrc_frc/internal/models"
	"github.com/Speshl/gorrc_frc/internal/scheduler"
	"github.com/Speshl/gorrc_frc/internal/swerve"
	"github.com/Speshl/gorrc_frc/internal/units"
	"github.com/prometheus/procfs"
)

const (
	// Axis maps
	LeftStickX  = 0
	LeftStickY  = 1
	RightStickX = 2

	// Driver button maps
	SeedFieldCentric = 0
	Brake            = 1

	// Operator button maps
	AlgaeStow         = 0
	AlgaeIntake       = 1
	AlgaeScore        = 2
	AlgaeEject        = 3
	AlgaeManualIntake = 4
)

// driverInput is the driver's stick demand as fractions of max speed.
type driverInput struct {
	forward  float64
	left     float64
	rotation float64
	brake    bool
}

func (r *Robot) driverParser(oldCommand, newCommand models.ControlState) {
	deadZone := r.cfg.ControlsCfg.StickDeadZone

	// sticks read positive down and right
	r.driverInput.forward = -controls.MapAxisWithDeadZone(controls.Axis(newCommand, LeftStickY), controls.MinInput, controls.MaxInput, -1, 1, deadZone, 0)
	r.driverInput.left = -controls.MapAxisWithDeadZone(controls.Axis(newCommand, LeftStickX), controls.MinInput, controls.MaxInput, -1, 1, deadZone, 0)
	r.driverInput.rotation = -controls.MapAxisWithDeadZone(controls.Axis(newCommand, RightStickX), controls.MinInput, controls.MaxInput, -1, 1, deadZone, 0)
	r.driverInput.brake = len(newCommand.Buttons) > Brake && newCommand.Buttons[Brake]

	r.bind(oldCommand, newCommand, SeedFieldCentric, r.seedFieldCentric)
}

func (r *Robot) driverCenter() {
	r.driverInput = driverInput{}
}

// driveRequest is polled by the drivetrain default command every loop.
func (r *Robot) driveRequest() swerve.Request {
	if r.ds.IsDisabled() || r.driverInput.brake {
		return swerve.Idle{}
	}

	maxSpeed := r.cfg.DrivetrainCfg.MaxSpeed
	return r.fieldCentric.
		WithVelocityX(r.driverInput.forward * maxSpeed).
		WithVelocityY(r.driverInput.left * maxSpeed).
		WithRotationalRate(r.driverInput.rotation * r.cfg.DrivetrainCfg.MaxAngularRate)
}

// seedFieldCentric makes the direction the robot faces the operator forward direction.
func (r *Robot) seedFieldCentric() {
	pose := r.drivetrain.GetState().Pose
	r.drivetrain.ResetPose(geometry.Pose2d{
		Translation: pose.Translation,
		Rotation:    r.swerveSim.OperatorPerspectiveForward(),
	})
	r.logger.Infof("field centric heading seeded")
}

func (r *Robot) operatorParser(oldCommand, newCommand models.ControlState) {
	if r.ds.IsDisabled() {
		return
	}

	algaeCfg := r.cfg.AlgaeCfg
	r.bind(oldCommand, newCommand, AlgaeStow, func() {
		r.scheduler.Schedule(r.algae.SetAngle(units.Degrees(algaeCfg.StowAngleDeg)))
	})
	r.bind(oldCommand, newCommand, AlgaeIntake, func() {
		r.scheduler.Schedule(r.intakeAlgae())
	})
	r.bind(oldCommand, newCommand, AlgaeScore, func() {
		r.scheduler.Schedule(r.algae.SetAngle(units.Degrees(algaeCfg.ScoreAngleDeg)))
	})
	r.bind(oldCommand, newCommand, AlgaeEject, func() {
		eject := time.Duration(algaeCfg.EjectSeconds * float64(time.Second))
		r.scheduler.Schedule(r.algae.RunIntakeFor(units.RPM(algaeCfg.EjectRPM), eject))
	})

	r.bind(oldCommand, newCommand, AlgaeManualIntake, func() {
		r.scheduler.Schedule(r.algae.RunIntake(units.RPM(algaeCfg.IntakeRPM)))
	})
	_, err := controls.NewRelease(oldCommand, newCommand, AlgaeManualIntake, func() {
		if cmd, ok := r.scheduler.Requiring(r.algae); ok {
			r.scheduler.Cancel(cmd)
		}
	})
	if err != nil {
		r.logger.Debugf("failed reading operator button %d: %s", AlgaeManualIntake, err.Error())
	}
}

// intakeAlgae lowers the arm, runs the intake until the sensor trips, then stows.
func (r *Robot) intakeAlgae() scheduler.Command {
	algaeCfg := r.cfg.AlgaeCfg
	return scheduler.Sequence(
		r.algae.SetAngle(units.Degrees(algaeCfg.IntakeAngleDeg)),
		r.algae.IntakeWithSensor(units.RPM(algaeCfg.IntakeRPM)),
		r.algae.SetAngle(units.Degrees(algaeCfg.StowAngleDeg)),
	)
}

func (r *Robot) bind(oldCommand, newCommand models.ControlState, button int, f func()) {
	_, err := controls.NewPress(oldCommand, newCommand, button, f)
	if err != nil {
		r.logger.Debugf("failed reading button %d: %s", button, err.Error())
	}
}

func (r *Robot) driverHud(netInfo procfs.NetDevLine) models.Hud {
	status := r.Status()
	return models.Hud{
		Lines: []string{
			controls.NetLine(netInfo),
			fmt.Sprintf("Mode:%s | Alliance:%s | Batt:%.1fV", status.Mode, status.Alliance, status.BatteryVolts),
			fmt.Sprintf("X:%.2f | Y:%.2f | Heading:%.0f | Tags:%d", status.X, status.Y, status.HeadingDeg, status.VisionTargets),
		},
	}
}

func (r *Robot) operatorHud(netInfo procfs.NetDevLine) models.Hud {
	status := r.Status()
	return models.Hud{
		Lines: []string{
			controls.NetLine(netInfo),
			fmt.Sprintf("Mode:%s | Alliance:%s", status.Mode, status.Alliance),
			fmt.Sprintf("Algae:%.0fdeg | Intake:%.0frpm | Holding:%t", status.AlgaeAngleDeg, status.AlgaeIntakeRPM, status.HasAlgae),
		},
	}
}
