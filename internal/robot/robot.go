// Package robot wires the subsystems, operator seats and autonomous routine
// into one fixed period robot loop.
package robot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_frc/internal/autobuilder"
	"github.com/Speshl/gorrc_frc/internal/command"
	"github.com/Speshl/gorrc_frc/internal/config"
	"github.com/Speshl/gorrc_frc/internal/controls"
	"github.com/Speshl/gorrc_frc/internal/driverstation"
	"github.com/Speshl/gorrc_frc/internal/geometry"
	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/Speshl/gorrc_frc/internal/models"
	"github.com/Speshl/gorrc_frc/internal/motor"
	"github.com/Speshl/gorrc_frc/internal/scheduler"
	"github.com/Speshl/gorrc_frc/internal/sensor"
	"github.com/Speshl/gorrc_frc/internal/subsystems"
	"github.com/Speshl/gorrc_frc/internal/swerve"
	"github.com/Speshl/gorrc_frc/internal/telemetry"
	"github.com/Speshl/gorrc_frc/internal/units"
	"github.com/Speshl/gorrc_frc/internal/vision"
	"github.com/prometheus/procfs"
	"golang.org/x/sync/errgroup"
)

const (
	MaxSeats     = 2
	DriverSeat   = 0
	OperatorSeat = 1
)

// Robot is the robot container. Everything except the seat, vision and
// drivetrain sim goroutines runs on the robot loop.
type Robot struct {
	cfg config.Config

	ds            *driverstation.Station
	scheduler     *scheduler.Scheduler
	swerveSim     *swerve.SimDrivetrain
	drivetrain    *subsystems.CommandSwerveDrivetrain
	algae         *subsystems.AlgaeSubsystem
	angleMotor    *motor.SimTalon
	intakeMotor   *motor.SimTalon
	algaeSim      *algaeSim
	battery       *simBattery
	cluster       *vision.Cluster
	visionSources []*vision.ZmqSource
	outputDriver  command.OutputDriver
	recorder      *telemetry.Recorder
	netStats      *controls.NetStats
	seats         []*controls.Seat

	autoTrajectory *autobuilder.Trajectory
	autoCommand    scheduler.Command
	lastMode       driverstation.Mode
	lastLoop       time.Time
	lastTelemetry  time.Time

	fieldCentric swerve.FieldCentric
	driverInput  driverInput

	statusLock sync.RWMutex
	status     models.RobotStatus

	logger log.Logger
}

// NewRobot builds the robot. outputDriver may be nil when no PWM outputs mirror the motors.
func NewRobot(cfg config.Config, ds *driverstation.Station, outputDriver command.OutputDriver, seats []models.Seat, logger log.Logger) (*Robot, error) {
	logger.Infof("setting up %s with %d seats", cfg.RobotCfg.Name, len(seats))
	r := &Robot{
		cfg:          cfg,
		ds:           ds,
		scheduler:    scheduler.NewScheduler(logger),
		outputDriver: outputDriver,
		lastMode:     driverstation.ModeDisabled,
		logger:       logger,
	}

	dtCfg := cfg.DrivetrainCfg
	r.swerveSim = swerve.NewSimDrivetrain(swerve.Constants{
		MaxSpeed:       dtCfg.MaxSpeed,
		MaxAngularRate: dtCfg.MaxAngularRate,
		StateStdDevs:   dtCfg.StateStdDevs,
		NominalVoltage: dtCfg.NominalBattery,
		HistoryWindow:  time.Duration(cfg.VisionCfg.MaxMeasurementAgeMs) * time.Millisecond,
	}, logger)

	r.cluster = vision.NewCluster(vision.Options{
		MaxSingleTagDistance: cfg.VisionCfg.MaxSingleTagDistance,
		MaxPoseZ:             cfg.VisionCfg.MaxPoseZ,
	}, logger)
	for _, endpoint := range cfg.VisionCfg.Endpoints {
		source := vision.NewZmqSource(endpoint, cfg.VisionCfg.Topic, cfg.VisionCfg.BufferSize,
			time.Duration(cfg.VisionCfg.PollTimeoutMs)*time.Millisecond, logger)
		r.visionSources = append(r.visionSources, source)
		r.cluster.AddSource(source)
	}

	algaeCfg := cfg.AlgaeCfg
	r.angleMotor = motor.NewSimTalon(algaeCfg.AngleMotorID, "algae_angle", algaeCfg.AngleFreeSpeed, outputDriver, logger)
	r.intakeMotor = motor.NewSimTalon(algaeCfg.IntakeMotorID, "algae_intake", algaeCfg.IntakeFreeSpeed, outputDriver, logger)
	r.battery = newSimBattery(dtCfg.NominalBattery, dtCfg.MaxSpeed, r.swerveSim, r.angleMotor, r.intakeMotor)

	drivetrainOpts := subsystems.DrivetrainOptions{
		BluePerspective: geometry.FromDegrees(dtCfg.BluePerspectiveDeg),
		RedPerspective:  geometry.FromDegrees(dtCfg.RedPerspectiveDeg),
		SimLoopPeriod:   dtCfg.SimLoopPeriod(),
		TranslationPID:  autobuilder.NewPIDConstants(dtCfg.TranslationPID.P, dtCfg.TranslationPID.I, dtCfg.TranslationPID.D),
		RotationPID:     autobuilder.NewPIDConstants(dtCfg.RotationPID.P, dtCfg.RotationPID.I, dtCfg.RotationPID.D),
	}
	r.drivetrain = subsystems.NewCommandSwerveDrivetrain(r.swerveSim, ds, r.cluster, r.battery.Voltage, drivetrainOpts, logger)

	algaeSensor, err := r.buildAlgaeSensor()
	if err != nil {
		return nil, err
	}
	r.algae, err = subsystems.NewAlgaeSubsystem(r.angleMotor, r.intakeMotor, algaeSensor, subsystems.AlgaeOptions{
		MinAngle:          units.Degrees(algaeCfg.MinAngleDeg),
		MaxAngle:          units.Degrees(algaeCfg.MaxAngleDeg),
		AngleMotorConfig:  algaeCfg.AngleMotor,
		IntakeMotorConfig: algaeCfg.IntakeMotor,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed building algae subsystem: %w", err)
	}

	r.fieldCentric = swerve.FieldCentric{}.
		WithDeadband(dtCfg.MaxSpeed * dtCfg.Deadband).
		WithRotationalDeadband(dtCfg.MaxAngularRate * dtCfg.Deadband)

	r.scheduler.RegisterSubsystem(r.drivetrain, r.algae)
	err = r.scheduler.SetDefaultCommand(r.drivetrain, r.drivetrain.ApplyRequest(r.driveRequest))
	if err != nil {
		return nil, fmt.Errorf("failed setting drivetrain default command: %w", err)
	}

	r.seats = r.newSeats(seats)

	if cfg.AutoCfg.Trajectory != "" {
		traj, err := autobuilder.LoadTrajectory(cfg.AutoCfg.Trajectory)
		if err != nil {
			logger.Errorf("autonomous disabled: %s", err.Error())
		} else {
			r.autoTrajectory = &traj
		}
	}

	return r, nil
}

func (r *Robot) buildAlgaeSensor() (sensor.DigitalInput, error) {
	if r.cfg.RobotCfg.Sim || r.cfg.AlgaeCfg.SensorPin < 0 {
		simInput := sensor.NewSimInput()
		r.algaeSim = newAlgaeSim(simInput)
		return simInput, nil
	}

	pin, err := sensor.OpenPinInput(r.cfg.AlgaeCfg.SensorPin, r.cfg.AlgaeCfg.SensorActiveLow)
	if err != nil {
		return nil, fmt.Errorf("failed opening algae sensor: %w", err)
	}
	return pin, nil
}

func (r *Robot) newSeats(seats []models.Seat) []*controls.Seat {
	safetyTimeout := time.Duration(r.cfg.ControlsCfg.SafetyTimeoutMs) * time.Millisecond
	robotSeats := make([]*controls.Seat, 0, len(seats))
	for i := range seats {
		switch i {
		case DriverSeat:
			r.logger.Infof("setting up driver seat")
			robotSeats = append(robotSeats, controls.NewSeat(&seats[i], "driver", safetyTimeout, r.driverParser, r.driverCenter, r.driverHud, r.logger))
		case OperatorSeat:
			r.logger.Infof("setting up operator seat")
			robotSeats = append(robotSeats, controls.NewSeat(&seats[i], "operator", safetyTimeout, r.operatorParser, nil, r.operatorHud, r.logger))
		default:
			r.logger.Warnf("robot supports %d seats, ignoring seat %d", MaxSeats, i)
		}
	}
	return robotSeats
}

func (r *Robot) Init() (err error) {
	if r.outputDriver != nil {
		err = r.outputDriver.Init()
		if err != nil {
			return fmt.Errorf("failed initializing pwm output driver: %w", err)
		}
	}
	defer func() {
		if err != nil {
			r.releaseInit()
		}
	}()

	for _, source := range r.visionSources {
		err = source.Init()
		if err != nil {
			return fmt.Errorf("failed initializing vision source: %w", err)
		}
	}

	plannerErr := r.drivetrain.ConfigurePathPlanner(r.cfg.DrivetrainCfg.PathPlannerSettings)
	if plannerErr != nil {
		r.logger.Errorf("failed to load path planner config and configure auto builder: %s", plannerErr.Error())
	}

	if r.cfg.TelemetryCfg.Path != "" {
		recorder, openErr := telemetry.Open(r.cfg.TelemetryCfg.Path, r.logger)
		if openErr != nil {
			return fmt.Errorf("failed opening telemetry: %w", openErr)
		}
		_, sessionErr := recorder.StartSession(r.cfg.RobotCfg.Name, r.cfg.RobotCfg.Sim, time.Now())
		if sessionErr != nil {
			recorder.Close()
			return fmt.Errorf("failed starting telemetry session: %w", sessionErr)
		}
		r.recorder = recorder
	}

	netStats, statsErr := controls.NewNetStats(r.cfg.ControlsCfg.NetInterface)
	if statsErr != nil {
		r.logger.Warnf("hud network stats unavailable: %s", statsErr.Error())
	} else {
		r.netStats = netStats
	}
	return nil
}

// releaseInit closes what a failed Init already opened.
func (r *Robot) releaseInit() {
	for _, source := range r.visionSources {
		err := source.Close()
		if err != nil {
			r.logger.Warnf("%s", err.Error())
		}
	}
	if r.outputDriver != nil {
		err := r.outputDriver.Stop()
		if err != nil {
			r.logger.Warnf("failed stopping pwm output driver: %s", err.Error())
		}
	}
}

func (r *Robot) Stop() error {
	r.logger.Infof("stopping robot")
	r.algae.Stop()
	r.drivetrain.SetControl(swerve.Idle{})

	var errs []error
	if r.outputDriver != nil {
		err := r.outputDriver.Stop()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed stopping pwm output driver: %w", err))
		}
	}
	if r.recorder != nil {
		err := r.recorder.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed closing telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Start runs the robot until ctx is done or a goroutine fails.
func (r *Robot) Start(ctx context.Context) (err error) {
	r.logger.Infof("starting robot")
	errGroup, errGroupCtx := errgroup.WithContext(ctx)

	defer func() {
		stopErr := r.Stop()
		if stopErr != nil {
			r.logger.Errorf("failed stopping robot: %s", stopErr.Error())
			err = errors.Join(err, stopErr)
		}
	}()

	for i := range r.seats {
		seat := r.seats[i]
		errGroup.Go(func() error {
			return seat.Start(errGroupCtx)
		})
	}

	for i := range r.visionSources {
		source := r.visionSources[i]
		errGroup.Go(func() error {
			return source.Start(errGroupCtx)
		})
	}

	errGroup.Go(func() error {
		return r.drivetrain.RunSimLoop(errGroupCtx)
	})

	errGroup.Go(func() error {
		loopTicker := time.NewTicker(r.cfg.RobotCfg.LoopPeriod())
		defer loopTicker.Stop()
		for {
			select {
			case <-errGroupCtx.Done():
				r.logger.Infof("stopping robot loop: %s", errGroupCtx.Err().Error())
				return errGroupCtx.Err()
			case now := <-loopTicker.C:
				r.loop(now)
			}
		}
	})

	err = errGroup.Wait()
	if err != nil {
		return fmt.Errorf("robot error group closed: %w", err)
	}
	return nil
}

// loop is one robot period: operator input, mode changes, commands, mechanism
// simulation, then status, telemetry and HUDs.
func (r *Robot) loop(now time.Time) {
	dt := r.cfg.RobotCfg.LoopPeriod()
	if !r.lastLoop.IsZero() {
		dt = now.Sub(r.lastLoop)
	}
	r.lastLoop = now

	for _, seat := range r.seats {
		seat.ApplyCommand()
	}

	r.handleModeChange(r.ds.Mode())
	r.scheduler.Run()
	r.simulateMechanisms(dt)
	r.updateStatus(now)
	r.recordTelemetry(now)
	r.updateHuds()
}

func (r *Robot) handleModeChange(mode driverstation.Mode) {
	if mode == r.lastMode {
		return
	}
	r.logger.Infof("mode changed from %s to %s", r.lastMode, mode)
	r.lastMode = mode

	switch mode {
	case driverstation.ModeDisabled:
		r.scheduler.CancelAll()
		r.autoCommand = nil
		r.driverInput = driverInput{}
		r.drivetrain.SetControl(swerve.Idle{})
		r.algae.Stop()
	case driverstation.ModeAutonomous:
		r.scheduler.CancelAll()
		r.scheduleAuto()
	default:
		if r.autoCommand != nil {
			r.scheduler.Cancel(r.autoCommand)
			r.autoCommand = nil
		}
	}
}

func (r *Robot) scheduleAuto() {
	if r.autoTrajectory == nil {
		r.logger.Warnf("no autonomous trajectory loaded")
		return
	}

	auto, err := autobuilder.BuildAuto(*r.autoTrajectory)
	if err != nil {
		r.logger.Errorf("failed building autonomous routine: %s", err.Error())
		return
	}
	r.autoCommand = auto
	r.scheduler.Schedule(auto)
	r.logger.Infof("scheduled autonomous %s", auto.Name())
}

func (r *Robot) simulateMechanisms(dt time.Duration) {
	volts := r.battery.Voltage()
	r.angleMotor.UpdateSim(dt, volts)
	r.intakeMotor.UpdateSim(dt, volts)
	if r.algaeSim != nil {
		r.algaeSim.update(dt, r.intakeMotor.Velocity())
	}
}

func (r *Robot) recordTelemetry(now time.Time) {
	if r.recorder == nil {
		return
	}

	err := r.recorder.RecordVision(r.drivetrain.VisionResults())
	if err != nil {
		r.logger.Warnf("failed recording vision: %s", err.Error())
	}

	period := time.Duration(r.cfg.TelemetryCfg.PeriodMs) * time.Millisecond
	if now.Sub(r.lastTelemetry) < period {
		return
	}
	r.lastTelemetry = now

	state := r.drivetrain.GetState()
	err = r.recorder.RecordPose(telemetry.PoseSample{
		At:     now,
		Mode:   string(r.lastMode),
		Pose:   state.Pose,
		Speeds: state.Speeds,
	})
	if err != nil {
		r.logger.Warnf("failed recording pose: %s", err.Error())
	}

	algae := r.algae.Status()
	err = r.recorder.RecordMechanism(telemetry.MechanismSample{
		At:             now,
		AlgaeAngleDeg:  float64(algae.Angle),
		AlgaeIntakeRPM: float64(algae.IntakeSpeed),
		HasAlgae:       algae.HasAlgae,
	})
	if err != nil {
		r.logger.Warnf("failed recording mechanism: %s", err.Error())
	}
}

func (r *Robot) updateHuds() {
	netInfo := procfs.NetDevLine{Name: r.cfg.ControlsCfg.NetInterface}
	if r.netStats != nil {
		stats, err := r.netStats.Read()
		if err != nil {
			r.logger.Debugf("failed reading network stats: %s", err.Error())
		} else {
			netInfo = stats
		}
	}

	for _, seat := range r.seats {
		seat.UpdateHud(netInfo)
	}
}
