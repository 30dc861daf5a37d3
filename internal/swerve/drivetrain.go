// Package swerve holds the drivetrain contract the robot code drives against
// and a simulated drivetrain with a simple pose estimator behind it.
package swerve

import (
	"time"

	"github.com/Speshl/gorrc_frc/internal/geometry"
)

// State is a snapshot of the drivetrain. Speeds are robot relative.
type State struct {
	Pose      geometry.Pose2d
	Speeds    geometry.ChassisSpeeds
	Timestamp time.Time
}

type Drivetrain interface {
	GetState() State
	ResetPose(pose geometry.Pose2d)
	SetControl(req Request)
	SetOperatorPerspectiveForward(rotation geometry.Rotation2d)
	// AddVisionMeasurement fuses a field pose observed at timestamp. stdDevs
	// are x and y in meters and heading in radians.
	AddVisionMeasurement(pose geometry.Pose2d, timestamp time.Time, stdDevs [3]float64)
	UpdateSimState(dt time.Duration, batteryVoltage float64)
}
