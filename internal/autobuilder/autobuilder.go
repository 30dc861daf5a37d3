// Package autobuilder turns trajectories into drivetrain commands once the
// drivetrain has registered how to read and drive the robot.
package autobuilder

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Speshl/gorrc_frc/internal/geometry"
	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/Speshl/gorrc_frc/internal/scheduler"
)

var (
	ErrNotConfigured = errors.New("auto builder not configured")
	ErrInvalidConfig = errors.New("invalid auto builder config")
)

// Config holds everything path following needs from the drivetrain.
type Config struct {
	PoseSupplier   func() geometry.Pose2d
	ResetPose      func(geometry.Pose2d)
	SpeedsSupplier func() geometry.ChassisSpeeds // robot relative
	Output         func(geometry.ChassisSpeeds)  // robot relative
	Controller     *HolonomicDriveController
	RobotConfig    RobotConfig
	ShouldFlip     func() bool
	Requirement    scheduler.Subsystem
}

func (c Config) validate() error {
	switch {
	case c.PoseSupplier == nil:
		return fmt.Errorf("pose supplier is nil: %w", ErrInvalidConfig)
	case c.ResetPose == nil:
		return fmt.Errorf("pose reset is nil: %w", ErrInvalidConfig)
	case c.SpeedsSupplier == nil:
		return fmt.Errorf("speeds supplier is nil: %w", ErrInvalidConfig)
	case c.Output == nil:
		return fmt.Errorf("output is nil: %w", ErrInvalidConfig)
	case c.Controller == nil:
		return fmt.Errorf("controller is nil: %w", ErrInvalidConfig)
	case c.ShouldFlip == nil:
		return fmt.Errorf("flip predicate is nil: %w", ErrInvalidConfig)
	case c.Requirement == nil:
		return fmt.Errorf("requirement is nil: %w", ErrInvalidConfig)
	}
	return nil
}

var (
	lock       sync.RWMutex
	configured *Config
	logger     = log.Discard()
)

// Configure registers the process wide auto builder. Configuring twice is a
// mistake; the second call logs an error and replaces the first.
func Configure(cfg Config, l log.Logger) error {
	err := cfg.validate()
	if err != nil {
		return err
	}

	lock.Lock()
	defer lock.Unlock()

	if l != nil {
		logger = l.WithField("component", "autobuilder")
	}
	if configured != nil {
		logger.Errorf("auto builder has already been configured, replacing previous configuration")
	}
	configured = &cfg
	logger.Infof("auto builder configured")
	return nil
}

func IsConfigured() bool {
	lock.RLock()
	defer lock.RUnlock()
	return configured != nil
}

// Reset drops the registered configuration.
func Reset() {
	lock.Lock()
	defer lock.Unlock()
	configured = nil
}

func current() (Config, error) {
	lock.RLock()
	defer lock.RUnlock()
	if configured == nil {
		return Config{}, ErrNotConfigured
	}
	return *configured, nil
}

// BuildAuto resets the pose to the trajectory start, then follows it.
func BuildAuto(traj Trajectory) (scheduler.Command, error) {
	reset, err := ResetPoseTo(traj)
	if err != nil {
		return nil, err
	}
	follow, err := FollowTrajectory(traj)
	if err != nil {
		return nil, err
	}
	return scheduler.Sequence(reset, follow), nil
}

// ResetPoseTo resets odometry to the start of traj, flipped when the
// alliance calls for it at the time the command runs.
func ResetPoseTo(traj Trajectory) (scheduler.Command, error) {
	cfg, err := current()
	if err != nil {
		return nil, err
	}

	return scheduler.RunOnce("reset_pose("+traj.Name+")", func() {
		pose := traj.InitialPose()
		if cfg.ShouldFlip() {
			pose = geometry.FlipPose(pose)
		}
		cfg.ResetPose(pose)
	}, cfg.Requirement), nil
}

// FollowTrajectory builds a command that drives traj with the configured controller.
func FollowTrajectory(traj Trajectory) (scheduler.Command, error) {
	cfg, err := current()
	if err != nil {
		return nil, err
	}
	if len(traj.States) == 0 {
		return nil, fmt.Errorf("trajectory %s is empty: %w", traj.Name, ErrInvalidConfig)
	}
	return &followCommand{cfg: cfg, original: traj, now: time.Now}, nil
}

type followCommand struct {
	cfg      Config
	original Trajectory

	traj     Trajectory
	started  time.Time
	lastTick time.Time
	now      func() time.Time
}

func (c *followCommand) Name() string { return "follow(" + c.original.Name + ")" }

func (c *followCommand) Initialize() {
	c.traj = c.original
	if c.cfg.ShouldFlip() {
		c.traj = c.original.Flip()
	}
	c.cfg.Controller.Reset()

	speeds := c.cfg.SpeedsSupplier()
	logger.Debugf("starting %s at %.2f m/s", c.Name(), math.Hypot(speeds.Vx, speeds.Vy))
	c.started = c.now()
	c.lastTick = c.started
}

func (c *followCommand) Execute() {
	now := c.now()
	dt := now.Sub(c.lastTick)
	c.lastTick = now

	target := c.traj.Sample(now.Sub(c.started))
	speeds := c.cfg.Controller.Calculate(c.cfg.PoseSupplier(), target, dt)
	c.cfg.Output(limitTranslation(speeds, c.cfg.RobotConfig.MaxDriveVelocity))
}

func (c *followCommand) IsFinished() bool {
	return c.now().Sub(c.started) >= c.traj.TotalTime()
}

func (c *followCommand) End(bool) {
	c.cfg.Output(geometry.ChassisSpeeds{})
}

func (c *followCommand) Requirements() []scheduler.Subsystem {
	return []scheduler.Subsystem{c.cfg.Requirement}
}

// limitTranslation caps translational speed at maxVelocity, zero meaning no cap.
func limitTranslation(speeds geometry.ChassisSpeeds, maxVelocity float64) geometry.ChassisSpeeds {
	norm := math.Hypot(speeds.Vx, speeds.Vy)
	if maxVelocity <= 0 || norm <= maxVelocity {
		return speeds
	}
	speeds.Vx *= maxVelocity / norm
	speeds.Vy *= maxVelocity / norm
	return speeds
}
