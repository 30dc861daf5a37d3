package autobuilder

import (
	"time"

	"github.com/Speshl/gorrc_frc/internal/geometry"
	"github.com/felixge/pidctrl"
)

type PIDConstants struct {
	KP float64
	KI float64
	KD float64
}

func NewPIDConstants(kp, ki, kd float64) PIDConstants {
	return PIDConstants{KP: kp, KI: ki, KD: kd}
}

// HolonomicDriveController follows a trajectory by adding PID feedback on
// pose error to the trajectory's own field relative speeds.
type HolonomicDriveController struct {
	translation PIDConstants
	rotation    PIDConstants

	x     *pidctrl.PIDController
	y     *pidctrl.PIDController
	theta *pidctrl.PIDController
}

func NewHolonomicDriveController(translation, rotation PIDConstants) *HolonomicDriveController {
	c := &HolonomicDriveController{
		translation: translation,
		rotation:    rotation,
	}
	c.Reset()
	return c
}

func (c *HolonomicDriveController) TranslationConstants() PIDConstants { return c.translation }

func (c *HolonomicDriveController) RotationConstants() PIDConstants { return c.rotation }

// Reset clears integral and derivative history before a new trajectory.
func (c *HolonomicDriveController) Reset() {
	c.x = pidctrl.NewPIDController(c.translation.KP, c.translation.KI, c.translation.KD)
	c.y = pidctrl.NewPIDController(c.translation.KP, c.translation.KI, c.translation.KD)
	// heading error is wrapped before it reaches the controller, so it always
	// chases zero
	c.theta = pidctrl.NewPIDController(c.rotation.KP, c.rotation.KI, c.rotation.KD).Set(0)
}

// Calculate returns robot relative speeds that move current toward target.
func (c *HolonomicDriveController) Calculate(current geometry.Pose2d, target State, dt time.Duration) geometry.ChassisSpeeds {
	xFeedback := c.x.Set(target.Pose.X()).UpdateDuration(current.X(), dt)
	yFeedback := c.y.Set(target.Pose.Y()).UpdateDuration(current.Y(), dt)

	headingError := target.Pose.Rotation.Minus(current.Rotation).Radians
	thetaFeedback := c.theta.UpdateDuration(-headingError, dt)

	field := geometry.ChassisSpeeds{
		Vx:    target.Speeds.Vx + xFeedback,
		Vy:    target.Speeds.Vy + yFeedback,
		Omega: target.Speeds.Omega + thetaFeedback,
	}
	return geometry.FromFieldRelative(field, current.Rotation)
}
