// Package geometry provides the field-frame types shared by the drivetrain,
// vision and autonomous code. Distances are meters, angles radians.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Field dimensions used for alliance flipping.
const (
	FieldLength = 17.548
	FieldWidth  = 8.052
)

type Rotation2d struct {
	Radians float64
}

func NewRotation2d(radians float64) Rotation2d {
	return Rotation2d{Radians: normalize(radians)}
}

func FromDegrees(degrees float64) Rotation2d {
	return NewRotation2d(degrees * math.Pi / 180.0)
}

func (r Rotation2d) Degrees() float64 {
	return r.Radians * 180.0 / math.Pi
}

func (r Rotation2d) Cos() float64 {
	return math.Cos(r.Radians)
}

func (r Rotation2d) Sin() float64 {
	return math.Sin(r.Radians)
}

func (r Rotation2d) Plus(other Rotation2d) Rotation2d {
	return NewRotation2d(r.Radians + other.Radians)
}

func (r Rotation2d) Minus(other Rotation2d) Rotation2d {
	return NewRotation2d(r.Radians - other.Radians)
}

// normalize wraps an angle into (-pi, pi].
func normalize(radians float64) float64 {
	wrapped := math.Mod(radians, 2*math.Pi)
	if wrapped <= -math.Pi {
		wrapped += 2 * math.Pi
	} else if wrapped > math.Pi {
		wrapped -= 2 * math.Pi
	}
	return wrapped
}

type Translation2d struct {
	X float64
	Y float64
}

func (t Translation2d) Plus(other Translation2d) Translation2d {
	return Translation2d{X: t.X + other.X, Y: t.Y + other.Y}
}

func (t Translation2d) Minus(other Translation2d) Translation2d {
	return Translation2d{X: t.X - other.X, Y: t.Y - other.Y}
}

func (t Translation2d) Norm() float64 {
	return math.Hypot(t.X, t.Y)
}

type Pose2d struct {
	Translation Translation2d
	Rotation    Rotation2d
}

func NewPose2d(x, y float64, rotation Rotation2d) Pose2d {
	return Pose2d{Translation: Translation2d{X: x, Y: y}, Rotation: rotation}
}

func (p Pose2d) X() float64 {
	return p.Translation.X
}

func (p Pose2d) Y() float64 {
	return p.Translation.Y
}

// Pose3d is a field pose as reported by camera pose estimators.
type Pose3d struct {
	X, Y, Z  float64
	Rotation quat.Number
}

// ToPose2d drops Z and keeps the yaw of the rotation.
func (p Pose3d) ToPose2d() Pose2d {
	return NewPose2d(p.X, p.Y, NewRotation2d(p.Yaw()))
}

// Yaw is the rotation about the field Z axis.
func (p Pose3d) Yaw() float64 {
	q := p.Rotation
	if n := quat.Abs(q); n > 0 {
		q = quat.Scale(1/n, q)
	}
	return math.Atan2(2*(q.Real*q.Kmag+q.Imag*q.Jmag), 1-2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag))
}

// YawQuaternion builds a pure-yaw rotation.
func YawQuaternion(yaw float64) quat.Number {
	return quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
}

// ChassisSpeeds are vx/vy in m/s and omega in rad/s, robot or field relative
// depending on who produced them.
type ChassisSpeeds struct {
	Vx    float64
	Vy    float64
	Omega float64
}

// FromFieldRelative converts field relative speeds into the robot frame.
func FromFieldRelative(speeds ChassisSpeeds, heading Rotation2d) ChassisSpeeds {
	cos, sin := heading.Cos(), heading.Sin()
	return ChassisSpeeds{
		Vx:    speeds.Vx*cos + speeds.Vy*sin,
		Vy:    -speeds.Vx*sin + speeds.Vy*cos,
		Omega: speeds.Omega,
	}
}

// ToFieldRelative converts robot relative speeds into the field frame.
func ToFieldRelative(speeds ChassisSpeeds, heading Rotation2d) ChassisSpeeds {
	cos, sin := heading.Cos(), heading.Sin()
	return ChassisSpeeds{
		Vx:    speeds.Vx*cos - speeds.Vy*sin,
		Vy:    speeds.Vx*sin + speeds.Vy*cos,
		Omega: speeds.Omega,
	}
}

func (s ChassisSpeeds) Scale(k float64) ChassisSpeeds {
	return ChassisSpeeds{Vx: s.Vx * k, Vy: s.Vy * k, Omega: s.Omega * k}
}

// FlipPose mirrors a blue-origin pose to the red side using rotational field symmetry.
func FlipPose(p Pose2d) Pose2d {
	return Pose2d{
		Translation: Translation2d{X: FieldLength - p.X(), Y: FieldWidth - p.Y()},
		Rotation:    p.Rotation.Minus(NewRotation2d(math.Pi)),
	}
}

// FlipSpeeds flips field relative speeds to match FlipPose.
func FlipSpeeds(s ChassisSpeeds) ChassisSpeeds {
	return ChassisSpeeds{Vx: -s.Vx, Vy: -s.Vy, Omega: s.Omega}
}

// Interpolate blends two poses, t in [0,1].
func Interpolate(a, b Pose2d, t float64) Pose2d {
	return Pose2d{
		Translation: Translation2d{
			X: a.X() + (b.X()-a.X())*t,
			Y: a.Y() + (b.Y()-a.Y())*t,
		},
		Rotation: a.Rotation.Plus(NewRotation2d(b.Rotation.Minus(a.Rotation).Radians * t)),
	}
}
