package swerve

import (
	"math"
	"testing"
	"time"

	"github.com/Speshl/gorrc_frc/internal/geometry"
	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/stretchr/testify/assert"
)

const delta = 1e-9

func newTestDrivetrain() (*SimDrivetrain, *time.Time) {
	now := time.Unix(1000, 0)
	d := NewSimDrivetrain(Constants{
		MaxSpeed:       4,
		MaxAngularRate: 2 * math.Pi,
		StateStdDevs:   [3]float64{0.1, 0.1, 0.1},
	}, log.Discard())
	d.now = func() time.Time { return now }
	return d, &now
}

func TestFieldCentricUsesOperatorPerspective(t *testing.T) {
	req := FieldCentric{}.WithVelocityX(1).WithVelocityY(0.5)

	blue := req.Apply(ControlParameters{})
	assert.InDelta(t, 1, blue.Vx, delta)
	assert.InDelta(t, 0.5, blue.Vy, delta)

	red := req.Apply(ControlParameters{OperatorForward: geometry.FromDegrees(180)})
	assert.InDelta(t, -1, red.Vx, delta)
	assert.InDelta(t, -0.5, red.Vy, delta)

	// robot facing +Y on the blue side: field +X is robot -Y
	turned := req.Apply(ControlParameters{CurrentPose: geometry.NewPose2d(0, 0, geometry.FromDegrees(90))})
	assert.InDelta(t, 0.5, turned.Vx, delta)
	assert.InDelta(t, -1, turned.Vy, delta)
}

func TestFieldCentricDeadband(t *testing.T) {
	req := FieldCentric{}.
		WithVelocityX(0.05).
		WithRotationalRate(0.01).
		WithDeadband(0.1).
		WithRotationalDeadband(0.1)

	assert.Equal(t, geometry.ChassisSpeeds{}, req.Apply(ControlParameters{}))
}

func TestIdleAndRobotSpeeds(t *testing.T) {
	assert.Equal(t, geometry.ChassisSpeeds{}, Idle{}.Apply(ControlParameters{}))

	speeds := geometry.ChassisSpeeds{Vx: 1, Vy: 2, Omega: 3}
	assert.Equal(t, speeds, ApplyRobotSpeeds{}.WithSpeeds(speeds).Apply(ControlParameters{}))
}

func TestUpdateSimStateIntegratesRobotSpeeds(t *testing.T) {
	d, now := newTestDrivetrain()
	d.ResetPose(geometry.NewPose2d(1, 1, geometry.FromDegrees(90)))
	d.SetControl(ApplyRobotSpeeds{Speeds: geometry.ChassisSpeeds{Vx: 1}})

	*now = now.Add(time.Second)
	d.UpdateSimState(time.Second, 12)

	state := d.GetState()
	assert.InDelta(t, 1, state.Pose.X(), delta)
	assert.InDelta(t, 2, state.Pose.Y(), delta)
	assert.InDelta(t, 1, state.Speeds.Vx, delta)
	assert.Equal(t, *now, state.Timestamp)
}

func TestUpdateSimStateBatterySag(t *testing.T) {
	d, _ := newTestDrivetrain()
	d.SetControl(ApplyRobotSpeeds{Speeds: geometry.ChassisSpeeds{Vx: 4, Omega: 10}})

	d.UpdateSimState(time.Second, 6)

	state := d.GetState()
	assert.InDelta(t, 2, state.Speeds.Vx, delta)
	assert.InDelta(t, math.Pi, state.Speeds.Omega, delta)
	assert.InDelta(t, 2, state.Pose.X(), delta)
}

func TestSetControlNilIdles(t *testing.T) {
	d, _ := newTestDrivetrain()
	d.SetControl(ApplyRobotSpeeds{Speeds: geometry.ChassisSpeeds{Vx: 1}})
	d.SetControl(nil)

	d.UpdateSimState(time.Second, 12)
	assert.Equal(t, geometry.ChassisSpeeds{}, d.GetState().Speeds)
}

func TestVisionMeasurementFusion(t *testing.T) {
	d, now := newTestDrivetrain()

	d.AddVisionMeasurement(geometry.NewPose2d(1, -1, geometry.FromDegrees(10)), *now, [3]float64{0.1, 0.1, 0.1})

	pose := d.GetState().Pose
	assert.InDelta(t, 0.5, pose.X(), delta)
	assert.InDelta(t, -0.5, pose.Y(), delta)
	assert.InDelta(t, 5, pose.Rotation.Degrees(), 1e-6)
}

func TestVisionMeasurementLowTrust(t *testing.T) {
	d, now := newTestDrivetrain()

	d.AddVisionMeasurement(geometry.NewPose2d(1, 0, geometry.Rotation2d{}), *now, [3]float64{0.9, 0.9, 0.9})

	// q=0.01, r=0.81: k = 0.01 / (0.01 + 0.09)
	assert.InDelta(t, 0.1, d.GetState().Pose.X(), delta)
}

func TestVisionMeasurementRejected(t *testing.T) {
	d, now := newTestDrivetrain()

	d.AddVisionMeasurement(geometry.NewPose2d(3, 3, geometry.Rotation2d{}), now.Add(-2*time.Second), [3]float64{0.1, 0.1, 0.1})
	d.AddVisionMeasurement(geometry.NewPose2d(3, 3, geometry.Rotation2d{}), *now, [3]float64{0.1, math.Inf(1), 0.1})
	d.AddVisionMeasurement(geometry.NewPose2d(3, 3, geometry.Rotation2d{}), *now, [3]float64{0.1, math.NaN(), 0.1})

	assert.Equal(t, geometry.Pose2d{}, d.GetState().Pose)
}

func TestVisionMeasurementUsesPoseHistory(t *testing.T) {
	d, now := newTestDrivetrain()
	start := *now
	d.UpdateSimState(0, 12)

	d.SetControl(ApplyRobotSpeeds{Speeds: geometry.ChassisSpeeds{Vx: 1}})
	*now = start.Add(time.Second)
	d.UpdateSimState(time.Second, 12)

	// agrees with where the robot was half a second ago
	d.AddVisionMeasurement(geometry.NewPose2d(0.5, 0, geometry.Rotation2d{}), start.Add(500*time.Millisecond), [3]float64{0.1, 0.1, 0.1})
	assert.InDelta(t, 1, d.GetState().Pose.X(), delta)

	// half a meter ahead of the past pose pulls the current pose a quarter meter
	d.AddVisionMeasurement(geometry.NewPose2d(1, 0, geometry.Rotation2d{}), start.Add(500*time.Millisecond), [3]float64{0.1, 0.1, 0.1})
	assert.InDelta(t, 1.25, d.GetState().Pose.X(), delta)
}

func TestOperatorPerspective(t *testing.T) {
	d, _ := newTestDrivetrain()
	d.SetOperatorPerspectiveForward(geometry.FromDegrees(180))
	assert.InDelta(t, 180, math.Abs(d.OperatorPerspectiveForward().Degrees()), delta)
}

func TestFusionGain(t *testing.T) {
	assert.Equal(t, 0.0, fusionGain(0, 1))
	assert.Equal(t, 1.0, fusionGain(1, 0))
	assert.InDelta(t, 0.5, fusionGain(0.3, 0.3), delta)
}
