package autobuilder

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Speshl/gorrc_frc/internal/geometry"
	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/Speshl/gorrc_frc/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delta = 1e-9

type fakeDrive struct {
	pose    geometry.Pose2d
	outputs []geometry.ChassisSpeeds
	resets  []geometry.Pose2d
	flip    bool
}

func (f *fakeDrive) Periodic() {}

func (f *fakeDrive) config() Config {
	return Config{
		PoseSupplier:   func() geometry.Pose2d { return f.pose },
		ResetPose:      func(p geometry.Pose2d) { f.pose = p; f.resets = append(f.resets, p) },
		SpeedsSupplier: func() geometry.ChassisSpeeds { return geometry.ChassisSpeeds{} },
		Output:         func(s geometry.ChassisSpeeds) { f.outputs = append(f.outputs, s) },
		Controller:     NewHolonomicDriveController(NewPIDConstants(5, 0, 0), NewPIDConstants(5, 0, 0)),
		RobotConfig:    RobotConfig{MassKG: 50, MaxDriveVelocity: 4, IsHolonomic: true},
		ShouldFlip:     func() bool { return f.flip },
		Requirement:    f,
	}
}

func straightLine() Trajectory {
	return Trajectory{
		Name: "line",
		States: []State{
			{Time: 0, Pose: geometry.NewPose2d(1, 1, geometry.Rotation2d{}), Speeds: geometry.ChassisSpeeds{Vx: 1}},
			{Time: 2 * time.Second, Pose: geometry.NewPose2d(3, 1, geometry.Rotation2d{}), Speeds: geometry.ChassisSpeeds{Vx: 1}},
		},
	}
}

func TestControllerFeedback(t *testing.T) {
	c := NewHolonomicDriveController(NewPIDConstants(5, 0, 0), NewPIDConstants(5, 0, 0))
	target := State{
		Pose:   geometry.NewPose2d(2, 1, geometry.FromDegrees(10)),
		Speeds: geometry.ChassisSpeeds{Vx: 1},
	}

	speeds := c.Calculate(geometry.NewPose2d(1, 1, geometry.Rotation2d{}), target, 20*time.Millisecond)
	assert.InDelta(t, 6, speeds.Vx, delta)
	assert.InDelta(t, 0, speeds.Vy, delta)
	assert.InDelta(t, 5*10*math.Pi/180, speeds.Omega, 1e-6)
}

func TestControllerOutputIsRobotRelative(t *testing.T) {
	c := NewHolonomicDriveController(NewPIDConstants(0, 0, 0), NewPIDConstants(0, 0, 0))
	target := State{Speeds: geometry.ChassisSpeeds{Vx: 1}}

	speeds := c.Calculate(geometry.NewPose2d(0, 0, geometry.FromDegrees(90)), target, 20*time.Millisecond)
	assert.InDelta(t, 0, speeds.Vx, delta)
	assert.InDelta(t, -1, speeds.Vy, delta)
}

func TestControllerWrapsHeading(t *testing.T) {
	c := NewHolonomicDriveController(NewPIDConstants(0, 0, 0), NewPIDConstants(1, 0, 0))
	target := State{Pose: geometry.NewPose2d(0, 0, geometry.FromDegrees(-170))}

	speeds := c.Calculate(geometry.NewPose2d(0, 0, geometry.FromDegrees(170)), target, 20*time.Millisecond)
	assert.InDelta(t, 20*math.Pi/180, speeds.Omega, 1e-6)
}

func TestTrajectorySample(t *testing.T) {
	traj := straightLine()

	assert.Equal(t, 2*time.Second, traj.TotalTime())
	assert.Equal(t, traj.States[0], traj.Sample(-time.Second))
	assert.Equal(t, traj.States[1], traj.Sample(5*time.Second))

	mid := traj.Sample(time.Second)
	assert.InDelta(t, 2, mid.Pose.X(), delta)
	assert.InDelta(t, 1, mid.Speeds.Vx, delta)
	assert.Equal(t, State{}, Trajectory{}.Sample(time.Second))
}

func TestTrajectoryFlip(t *testing.T) {
	flipped := straightLine().Flip()

	start := flipped.InitialPose()
	assert.InDelta(t, geometry.FieldLength-1, start.X(), delta)
	assert.InDelta(t, geometry.FieldWidth-1, start.Y(), delta)
	assert.InDelta(t, 180, math.Abs(start.Rotation.Degrees()), delta)
	assert.InDelta(t, -1, flipped.States[0].Speeds.Vx, delta)
}

func TestLoadTrajectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leave.traj.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"name": "leave",
		"samples": [
			{"t": 1.5, "x": 2.5, "y": 1, "heading": 0, "vx": 0, "vy": 0, "omega": 0},
			{"t": 0, "x": 1, "y": 1, "heading": 0, "vx": 1, "vy": 0, "omega": 0}
		]
	}`), 0o644))

	traj, err := LoadTrajectory(path)
	require.NoError(t, err)
	assert.Equal(t, "leave", traj.Name)
	require.Len(t, traj.States, 2)
	assert.Equal(t, time.Duration(0), traj.States[0].Time)
	assert.Equal(t, 1500*time.Millisecond, traj.TotalTime())

	_, err = LoadTrajectory(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"samples": []}`), 0o644))
	_, err = LoadTrajectory(empty)
	assert.Error(t, err)
}

func TestRobotConfigFromGUISettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"robotWidth": 0.9,
		"holonomicMode": true,
		"robotMass": 62.0,
		"robotMOI": 6.9,
		"driveWheelRadius": 0.048,
		"driveGearing": 6.12,
		"maxDriveSpeed": 4.6,
		"driveMotorType": "krakenX60",
		"driveCurrentLimit": 60.0,
		"wheelCOF": 1.2,
		"flModuleX": 0.27, "flModuleY": 0.27,
		"frModuleX": 0.27, "frModuleY": -0.27,
		"blModuleX": -0.27, "blModuleY": 0.27,
		"brModuleX": -0.27, "brModuleY": -0.27
	}`), 0o644))

	cfg, err := RobotConfigFromGUISettings(path)
	require.NoError(t, err)
	assert.Equal(t, 62.0, cfg.MassKG)
	assert.Equal(t, 4.6, cfg.MaxDriveVelocity)
	assert.Equal(t, "krakenX60", cfg.DriveMotorType)
	require.Len(t, cfg.ModuleLocations, 4)
	assert.Equal(t, geometry.Translation2d{X: 0.27, Y: -0.27}, cfg.ModuleLocations[1])

	differential := filepath.Join(dir, "tank.json")
	require.NoError(t, os.WriteFile(differential, []byte(`{"holonomicMode": false, "robotMass": 50, "maxDriveSpeed": 3}`), 0o644))
	_, err = RobotConfigFromGUISettings(differential)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = RobotConfigFromGUISettings(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestConfigure(t *testing.T) {
	t.Cleanup(Reset)
	Reset()

	_, err := FollowTrajectory(straightLine())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, IsConfigured())

	drive := &fakeDrive{}
	bad := drive.config()
	bad.ShouldFlip = nil
	assert.ErrorIs(t, Configure(bad, log.Discard()), ErrInvalidConfig)
	assert.False(t, IsConfigured())

	require.NoError(t, Configure(drive.config(), log.Discard()))
	assert.True(t, IsConfigured())

	// a second configuration replaces the first
	other := &fakeDrive{}
	require.NoError(t, Configure(other.config(), log.Discard()))
	cmd, err := FollowTrajectory(straightLine())
	require.NoError(t, err)
	require.Len(t, cmd.Requirements(), 1)
	assert.Same(t, other, cmd.Requirements()[0])

	_, err = FollowTrajectory(Trajectory{Name: "empty"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFollowTrajectory(t *testing.T) {
	t.Cleanup(Reset)
	drive := &fakeDrive{pose: geometry.NewPose2d(1, 1, geometry.Rotation2d{})}
	require.NoError(t, Configure(drive.config(), log.Discard()))

	cmd, err := FollowTrajectory(straightLine())
	require.NoError(t, err)
	follow := cmd.(*followCommand)
	now := time.Unix(100, 0)
	follow.now = func() time.Time { return now }

	follow.Initialize()
	now = now.Add(time.Second)
	drive.pose = geometry.NewPose2d(1.8, 1, geometry.Rotation2d{})
	follow.Execute()
	require.Len(t, drive.outputs, 1)
	// feedforward 1 m/s plus 5 * 0.2 m behind
	assert.InDelta(t, 2, drive.outputs[0].Vx, 1e-6)
	assert.False(t, follow.IsFinished())

	now = now.Add(time.Second)
	assert.True(t, follow.IsFinished())
	follow.End(false)
	assert.Equal(t, geometry.ChassisSpeeds{}, drive.outputs[len(drive.outputs)-1])
}

func TestFollowTrajectoryCapsSpeed(t *testing.T) {
	t.Cleanup(Reset)
	drive := &fakeDrive{}
	require.NoError(t, Configure(drive.config(), log.Discard()))

	cmd, err := FollowTrajectory(straightLine())
	require.NoError(t, err)
	cmd.Initialize()
	cmd.Execute()

	require.Len(t, drive.outputs, 1)
	assert.InDelta(t, 4, math.Hypot(drive.outputs[0].Vx, drive.outputs[0].Vy), 1e-6)
}

func TestBuildAutoFlipsForRed(t *testing.T) {
	t.Cleanup(Reset)
	drive := &fakeDrive{flip: true}
	require.NoError(t, Configure(drive.config(), log.Discard()))

	auto, err := BuildAuto(straightLine())
	require.NoError(t, err)

	s := scheduler.NewScheduler(log.Discard())
	s.Schedule(auto)

	require.Len(t, drive.resets, 1)
	assert.InDelta(t, geometry.FieldLength-1, drive.resets[0].X(), delta)
	assert.True(t, s.IsScheduled(auto))
}
