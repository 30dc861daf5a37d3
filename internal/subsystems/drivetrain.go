// Package subsystems holds the robot mechanisms the scheduler hands out to commands.
package subsystems

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_frc/internal/autobuilder"
	"github.com/Speshl/gorrc_frc/internal/driverstation"
	"github.com/Speshl/gorrc_frc/internal/geometry"
	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/Speshl/gorrc_frc/internal/scheduler"
	"github.com/Speshl/gorrc_frc/internal/swerve"
	"github.com/Speshl/gorrc_frc/internal/vision"
)

const (
	DefaultSimLoopPeriod = 5 * time.Millisecond
)

var (
	BlueAlliancePerspectiveRotation = geometry.FromDegrees(0)
	RedAlliancePerspectiveRotation  = geometry.FromDegrees(180)
)

type VisionCluster interface {
	GetVisionEstimates() []vision.Result
}

type DrivetrainOptions struct {
	BluePerspective geometry.Rotation2d
	RedPerspective  geometry.Rotation2d
	SimLoopPeriod   time.Duration
	TranslationPID  autobuilder.PIDConstants
	RotationPID     autobuilder.PIDConstants
}

func DefaultDrivetrainOptions() DrivetrainOptions {
	return DrivetrainOptions{
		BluePerspective: BlueAlliancePerspectiveRotation,
		RedPerspective:  RedAlliancePerspectiveRotation,
		SimLoopPeriod:   DefaultSimLoopPeriod,
		TranslationPID:  autobuilder.NewPIDConstants(5, 0, 0),
		RotationPID:     autobuilder.NewPIDConstants(5, 0, 0),
	}
}

var _ scheduler.Subsystem = (*CommandSwerveDrivetrain)(nil)

// CommandSwerveDrivetrain is the swerve drivetrain as a scheduler subsystem.
// It keeps the operator perspective in line with the alliance and feeds
// vision estimates into the pose estimator every loop.
type CommandSwerveDrivetrain struct {
	swerve.Drivetrain

	ds      driverstation.AllianceSource
	cluster VisionCluster
	battery func() float64
	opts    DrivetrainOptions

	hasAppliedOperatorPerspective bool
	autoRequest                   swerve.ApplyRobotSpeeds

	visionLock    sync.Mutex
	visionResults []vision.Result

	logger log.Logger
}

func NewCommandSwerveDrivetrain(drivetrain swerve.Drivetrain, ds driverstation.AllianceSource, cluster VisionCluster, battery func() float64, opts DrivetrainOptions, logger log.Logger) *CommandSwerveDrivetrain {
	if opts.SimLoopPeriod <= 0 {
		opts.SimLoopPeriod = DefaultSimLoopPeriod
	}
	if battery == nil {
		battery = func() float64 { return swerve.DefaultNominalVoltage }
	}
	return &CommandSwerveDrivetrain{
		Drivetrain: drivetrain,
		ds:         ds,
		cluster:    cluster,
		battery:    battery,
		opts:       opts,
		logger:     logger.WithField("subsystem", "drivetrain"),
	}
}

// Periodic applies the alliance perspective the first time an alliance is
// known regardless of driver station state, and afterwards only while disabled.
func (d *CommandSwerveDrivetrain) Periodic() {
	if !d.hasAppliedOperatorPerspective || d.ds.IsDisabled() {
		alliance, ok := d.ds.GetAlliance()
		if ok {
			perspective := d.opts.BluePerspective
			if alliance == driverstation.Red {
				perspective = d.opts.RedPerspective
			}
			d.SetOperatorPerspectiveForward(perspective)
			if !d.hasAppliedOperatorPerspective {
				d.logger.Infof("operator perspective set for %s alliance", alliance)
			}
			d.hasAppliedOperatorPerspective = true
		}
	}

	d.AddClusterVisionMeasurements()
}

// AddClusterVisionMeasurements forwards every estimate from the vision
// cluster to the pose estimator.
func (d *CommandSwerveDrivetrain) AddClusterVisionMeasurements() {
	if d.cluster == nil {
		return
	}

	results := d.cluster.GetVisionEstimates()
	for _, result := range results {
		d.AddVisionMeasurement(result.VisionEstimate.EstimatedPose.ToPose2d(), result.VisionEstimate.Timestamp, result.StandardDeviations)
	}

	d.visionLock.Lock()
	d.visionResults = results
	d.visionLock.Unlock()
}

// VisionResults returns the estimates forwarded during the last Periodic.
func (d *CommandSwerveDrivetrain) VisionResults() []vision.Result {
	d.visionLock.Lock()
	defer d.visionLock.Unlock()
	return d.visionResults
}

// RunSimLoop updates the simulated drivetrain at the sim loop period with the
// measured time since the previous update until ctx is done.
func (d *CommandSwerveDrivetrain) RunSimLoop(ctx context.Context) error {
	d.logger.Infof("starting drivetrain sim loop at %s", d.opts.SimLoopPeriod)
	simTicker := time.NewTicker(d.opts.SimLoopPeriod)
	defer simTicker.Stop()

	lastSimTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.logger.Infof("stopping drivetrain sim loop: %s", ctx.Err().Error())
			return ctx.Err()
		case currentTime := <-simTicker.C:
			deltaTime := currentTime.Sub(lastSimTime)
			lastSimTime = currentTime
			d.UpdateSimState(deltaTime, d.battery())
		}
	}
}

// ConfigurePathPlanner loads the robot config saved by the path planner GUI
// and registers this drivetrain with the auto builder.
func (d *CommandSwerveDrivetrain) ConfigurePathPlanner(settingsPath string) error {
	robotConfig, err := autobuilder.RobotConfigFromGUISettings(settingsPath)
	if err != nil {
		return fmt.Errorf("failed loading path planner robot config: %w", err)
	}
	return d.configureAutoBuilder(robotConfig)
}

func (d *CommandSwerveDrivetrain) configureAutoBuilder(robotConfig autobuilder.RobotConfig) error {
	err := autobuilder.Configure(autobuilder.Config{
		PoseSupplier:   func() geometry.Pose2d { return d.GetState().Pose },
		ResetPose:      func(pose geometry.Pose2d) { d.ResetPose(pose) },
		SpeedsSupplier: func() geometry.ChassisSpeeds { return d.GetState().Speeds },
		Output: func(speeds geometry.ChassisSpeeds) {
			d.SetControl(d.autoRequest.WithSpeeds(speeds))
		},
		Controller:  autobuilder.NewHolonomicDriveController(d.opts.TranslationPID, d.opts.RotationPID),
		RobotConfig: robotConfig,
		ShouldFlip:  d.shouldFlipPath,
		Requirement: d,
	}, d.logger)
	if err != nil {
		return fmt.Errorf("failed configuring auto builder: %w", err)
	}
	return nil
}

// shouldFlipPath mirrors paths for the red alliance. The field origin stays
// on the blue side.
func (d *CommandSwerveDrivetrain) shouldFlipPath() bool {
	alliance, ok := d.ds.GetAlliance()
	return ok && alliance == driverstation.Red
}

// ApplyRequest returns a command that drives with the request from supplier every loop.
func (d *CommandSwerveDrivetrain) ApplyRequest(supplier func() swerve.Request) scheduler.Command {
	return scheduler.Run("apply_request", func() {
		d.SetControl(supplier())
	}, d)
}
