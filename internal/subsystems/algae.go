package subsystems

import (
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/Speshl/gorrc_frc/internal/motor"
	"github.com/Speshl/gorrc_frc/internal/scheduler"
	"github.com/Speshl/gorrc_frc/internal/sensor"
	"github.com/Speshl/gorrc_frc/internal/units"
)

type AlgaeOptions struct {
	MinAngle          units.Degrees
	MaxAngle          units.Degrees
	AngleMotorConfig  motor.TalonFXConfiguration
	IntakeMotorConfig motor.TalonFXConfiguration
}

var _ scheduler.Subsystem = (*AlgaeSubsystem)(nil)

// AlgaeSubsystem is the algae arm: an angle motor positioned with Motion
// Magic and an intake roller run at Motion Magic velocities.
type AlgaeSubsystem struct {
	angleMotor  motor.Controller
	intakeMotor motor.Controller
	sensor      sensor.DigitalInput

	minAngle units.Degrees
	maxAngle units.Degrees

	poseRequest motor.MotionMagicVoltage
	velRequest  motor.MotionMagicVelocityVoltage

	lock        sync.RWMutex
	angle       units.Turns
	intakeSpeed units.RPM
	hasAlgae    bool

	logger log.Logger
}

// NewAlgaeSubsystem applies the motor configs, with the angle soft limits set
// to the mechanism's angle range.
func NewAlgaeSubsystem(angleMotor, intakeMotor motor.Controller, algaeSensor sensor.DigitalInput, opts AlgaeOptions, logger log.Logger) (*AlgaeSubsystem, error) {
	if opts.MinAngle >= opts.MaxAngle {
		return nil, fmt.Errorf("algae min angle %.1f must be below max angle %.1f", opts.MinAngle, opts.MaxAngle)
	}

	angleCfg := opts.AngleMotorConfig
	angleCfg.SoftLimits = motor.SoftLimitConfigs{
		ForwardEnable:    true,
		ForwardThreshold: float64(opts.MaxAngle.Turns()),
		ReverseEnable:    true,
		ReverseThreshold: float64(opts.MinAngle.Turns()),
	}

	err := angleMotor.Apply(angleCfg)
	if err != nil {
		return nil, fmt.Errorf("failed configuring algae angle motor: %w", err)
	}
	err = intakeMotor.Apply(opts.IntakeMotorConfig)
	if err != nil {
		return nil, fmt.Errorf("failed configuring algae intake motor: %w", err)
	}

	return &AlgaeSubsystem{
		angleMotor:  angleMotor,
		intakeMotor: intakeMotor,
		sensor:      algaeSensor,
		minAngle:    opts.MinAngle,
		maxAngle:    opts.MaxAngle,
		poseRequest: motor.MotionMagicVoltage{}.WithSlot(0),
		velRequest:  motor.MotionMagicVelocityVoltage{},
		logger:      logger.WithField("subsystem", "algae"),
	}, nil
}

func (a *AlgaeSubsystem) Periodic() {
	angle := units.Turns(a.angleMotor.Position())
	intakeSpeed := units.RPS(a.intakeMotor.Velocity()).RPM()
	hasAlgae := a.sensor != nil && a.sensor.Get()

	a.lock.Lock()
	if hasAlgae != a.hasAlgae {
		a.logger.Debugf("algae sensor changed: %t", hasAlgae)
	}
	a.angle = angle
	a.intakeSpeed = intakeSpeed
	a.hasAlgae = hasAlgae
	a.lock.Unlock()
}

// SetAngle moves the arm to angle. Angles outside the mechanism range are refused.
func (a *AlgaeSubsystem) SetAngle(angle units.Degrees) scheduler.Command {
	return scheduler.RunOnce(fmt.Sprintf("algae_set_angle(%.1f)", angle), func() {
		a.setAngle(angle)
	}, a)
}

// SetIntake sets the intake velocity and leaves it running.
func (a *AlgaeSubsystem) SetIntake(velocity units.RPM) scheduler.Command {
	return scheduler.RunOnce(fmt.Sprintf("algae_set_intake(%.0f)", velocity), func() {
		a.setIntake(velocity)
	}, a)
}

// RunIntake runs the intake at velocity until interrupted, then stops it.
func (a *AlgaeSubsystem) RunIntake(velocity units.RPM) scheduler.Command {
	return scheduler.StartEnd(fmt.Sprintf("algae_run_intake(%.0f)", velocity),
		func() { a.setIntake(velocity) },
		func() { a.setIntake(0) },
		a,
	)
}

func (a *AlgaeSubsystem) RunIntakeFor(velocity units.RPM, timeout time.Duration) scheduler.Command {
	return scheduler.WithTimeout(a.RunIntake(velocity), timeout)
}

// IntakeWithSensor runs the intake until the sensor sees algae.
func (a *AlgaeSubsystem) IntakeWithSensor(velocity units.RPM) scheduler.Command {
	return scheduler.Until(a.RunIntake(velocity), func() bool {
		return a.sensor != nil && a.sensor.Get()
	})
}

func (a *AlgaeSubsystem) GetAngle() units.Turns {
	return units.Turns(a.angleMotor.Position())
}

// ValidAngle reports whether angle is inside the mechanism limits, inclusive.
func (a *AlgaeSubsystem) ValidAngle(angle units.Degrees) bool {
	return angle >= a.minAngle && angle <= a.maxAngle
}

// Stop releases both motors.
func (a *AlgaeSubsystem) Stop() {
	for _, m := range []motor.Controller{a.angleMotor, a.intakeMotor} {
		err := m.SetControl(motor.NeutralOut{})
		if err != nil {
			a.logger.Warnf("failed stopping algae motor: %s", err.Error())
		}
	}
}

// Status is the last state cached by Periodic.
type AlgaeStatus struct {
	Angle       units.Degrees
	IntakeSpeed units.RPM
	HasAlgae    bool
}

func (a *AlgaeSubsystem) Status() AlgaeStatus {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return AlgaeStatus{
		Angle:       a.angle.Degrees(),
		IntakeSpeed: a.intakeSpeed,
		HasAlgae:    a.hasAlgae,
	}
}

func (a *AlgaeSubsystem) setAngle(angle units.Degrees) {
	if !a.ValidAngle(angle) {
		a.logger.Warnf("refusing algae angle %.1f, outside [%.1f, %.1f]", angle, a.minAngle, a.maxAngle)
		return
	}

	err := a.angleMotor.SetControl(a.poseRequest.WithPosition(float64(angle.Turns())))
	if err != nil {
		a.logger.Errorf("failed setting algae angle: %s", err.Error())
	}
}

func (a *AlgaeSubsystem) setIntake(velocity units.RPM) {
	err := a.intakeMotor.SetControl(a.velRequest.WithVelocity(float64(velocity.RPS())))
	if err != nil {
		a.logger.Errorf("failed setting algae intake: %s", err.Error())
	}
}
