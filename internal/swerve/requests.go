package swerve

import (
	"math"

	"github.com/Speshl/gorrc_frc/internal/geometry"
)

// ControlParameters is what a request may look at when it is turned into speeds.
type ControlParameters struct {
	CurrentPose     geometry.Pose2d
	OperatorForward geometry.Rotation2d
	MaxSpeed        float64 // m/s
	MaxAngularRate  float64 // rad/s
}

// Request is a drivetrain control request. Apply returns robot relative speeds.
type Request interface {
	Apply(params ControlParameters) geometry.ChassisSpeeds
}

var (
	_ Request = ApplyRobotSpeeds{}
	_ Request = FieldCentric{}
	_ Request = Idle{}
)

// ApplyRobotSpeeds drives with robot relative speeds. Path following uses it.
type ApplyRobotSpeeds struct {
	Speeds geometry.ChassisSpeeds
}

func (r ApplyRobotSpeeds) WithSpeeds(speeds geometry.ChassisSpeeds) ApplyRobotSpeeds {
	r.Speeds = speeds
	return r
}

func (r ApplyRobotSpeeds) Apply(ControlParameters) geometry.ChassisSpeeds {
	return r.Speeds
}

// FieldCentric drives relative to the operator perspective, so pushing the
// stick forward moves away from the driver station on either alliance.
type FieldCentric struct {
	VelocityX          float64 // m/s, away from the operator
	VelocityY          float64 // m/s, to the operator's left
	RotationalRate     float64 // rad/s, counter-clockwise positive
	Deadband           float64 // m/s
	RotationalDeadband float64 // rad/s
}

func (r FieldCentric) WithVelocityX(v float64) FieldCentric {
	r.VelocityX = v
	return r
}

func (r FieldCentric) WithVelocityY(v float64) FieldCentric {
	r.VelocityY = v
	return r
}

func (r FieldCentric) WithRotationalRate(rate float64) FieldCentric {
	r.RotationalRate = rate
	return r
}

func (r FieldCentric) WithDeadband(deadband float64) FieldCentric {
	r.Deadband = deadband
	return r
}

func (r FieldCentric) WithRotationalDeadband(deadband float64) FieldCentric {
	r.RotationalDeadband = deadband
	return r
}

func (r FieldCentric) Apply(params ControlParameters) geometry.ChassisSpeeds {
	vx, vy, omega := r.VelocityX, r.VelocityY, r.RotationalRate
	if math.Hypot(vx, vy) < r.Deadband {
		vx, vy = 0, 0
	}
	if math.Abs(omega) < r.RotationalDeadband {
		omega = 0
	}

	field := geometry.ToFieldRelative(geometry.ChassisSpeeds{Vx: vx, Vy: vy, Omega: omega}, params.OperatorForward)
	return geometry.FromFieldRelative(field, params.CurrentPose.Rotation)
}

// Idle stops driving.
type Idle struct{}

func (Idle) Apply(ControlParameters) geometry.ChassisSpeeds {
	return geometry.ChassisSpeeds{}
}
