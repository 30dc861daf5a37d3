// Package motor is the contract the robot code holds against smart motor
// controllers: configuration objects, control requests and the controller
// itself. Closed-loop control and profile generation run on the controller.
package motor

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedRequest = errors.New("unsupported control request")
	ErrNotConfigured      = errors.New("motor controller not configured")
)

// Request is a control request consumed by Controller.SetControl.
type Request interface {
	Name() string
}

// DutyCycleOut commands a fraction of supply voltage, -1 to 1.
type DutyCycleOut struct {
	Output float64
}

func (r DutyCycleOut) Name() string { return "DutyCycleOut" }

func (r DutyCycleOut) WithOutput(output float64) DutyCycleOut {
	r.Output = output
	return r
}

// NeutralOut releases the output to the configured neutral mode.
type NeutralOut struct{}

func (r NeutralOut) Name() string { return "NeutralOut" }

// MotionMagicVoltage drives to Position (mechanism turns) along a Motion Magic profile.
type MotionMagicVoltage struct {
	Position    float64
	Slot        int
	FeedForward float64 // volts
}

func (r MotionMagicVoltage) Name() string { return "MotionMagicVoltage" }

func (r MotionMagicVoltage) WithPosition(turns float64) MotionMagicVoltage {
	r.Position = turns
	return r
}

func (r MotionMagicVoltage) WithSlot(slot int) MotionMagicVoltage {
	r.Slot = slot
	return r
}

// MotionMagicVelocityVoltage ramps to Velocity (mechanism turns/s) using the
// configured Motion Magic acceleration.
type MotionMagicVelocityVoltage struct {
	Velocity     float64
	Acceleration float64 // 0 uses the configured acceleration
	Slot         int
	FeedForward  float64
}

func (r MotionMagicVelocityVoltage) Name() string { return "MotionMagicVelocityVoltage" }

func (r MotionMagicVelocityVoltage) WithVelocity(turnsPerSecond float64) MotionMagicVelocityVoltage {
	r.Velocity = turnsPerSecond
	return r
}

type Slot0Configs struct {
	KP float64 `yaml:"kp"`
	KI float64 `yaml:"ki"`
	KD float64 `yaml:"kd"`
	KS float64 `yaml:"ks"`
	KV float64 `yaml:"kv"`
	KA float64 `yaml:"ka"`
	KG float64 `yaml:"kg"`
}

type MotionMagicConfigs struct {
	CruiseVelocity float64 `yaml:"cruise_velocity"` // turns/s
	Acceleration   float64 `yaml:"acceleration"`    // turns/s^2
	Jerk           float64 `yaml:"jerk"`
}

type FeedbackConfigs struct {
	SensorToMechanismRatio float64 `yaml:"sensor_to_mechanism_ratio"`
}

type SoftLimitConfigs struct {
	ForwardEnable    bool    `yaml:"forward_enable"`
	ForwardThreshold float64 `yaml:"forward_threshold"` // turns
	ReverseEnable    bool    `yaml:"reverse_enable"`
	ReverseThreshold float64 `yaml:"reverse_threshold"`
}

type CurrentLimitsConfigs struct {
	StatorCurrentLimit       float64 `yaml:"stator_current_limit"`
	StatorCurrentLimitEnable bool    `yaml:"stator_current_limit_enable"`
}

type MotorOutputConfigs struct {
	Inverted  bool `yaml:"inverted"`
	BrakeMode bool `yaml:"brake_mode"`
}

type TalonFXConfiguration struct {
	Slot0         Slot0Configs         `yaml:"slot0"`
	MotionMagic   MotionMagicConfigs   `yaml:"motion_magic"`
	Feedback      FeedbackConfigs      `yaml:"feedback"`
	SoftLimits    SoftLimitConfigs     `yaml:"soft_limits"`
	CurrentLimits CurrentLimitsConfigs `yaml:"current_limits"`
	MotorOutput   MotorOutputConfigs   `yaml:"motor_output"`
}

// Validate rejects configurations the controller would refuse.
func (c TalonFXConfiguration) Validate() error {
	if c.Feedback.SensorToMechanismRatio < 0 {
		return fmt.Errorf("sensor to mechanism ratio must not be negative, got %.3f", c.Feedback.SensorToMechanismRatio)
	}
	if c.MotionMagic.CruiseVelocity < 0 || c.MotionMagic.Acceleration < 0 {
		return fmt.Errorf("motion magic limits must not be negative")
	}
	if c.SoftLimits.ForwardEnable && c.SoftLimits.ReverseEnable && c.SoftLimits.ForwardThreshold <= c.SoftLimits.ReverseThreshold {
		return fmt.Errorf("forward soft limit %.3f must be above reverse soft limit %.3f", c.SoftLimits.ForwardThreshold, c.SoftLimits.ReverseThreshold)
	}
	return nil
}

// Controller is a smart motor controller. Positions are mechanism turns and
// velocities mechanism turns per second.
type Controller interface {
	Apply(cfg TalonFXConfiguration) error
	SetControl(req Request) error
	Position() float64
	Velocity() float64
	DutyCycle() float64
	AppliedRequest() Request
}
