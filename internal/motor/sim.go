package motor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Speshl/gorrc_frc/internal/command"
	"github.com/Speshl/gorrc_frc/internal/log"
)

const nominalVoltage = 12.0

var _ Controller = (*SimTalon)(nil)

// SimTalon stands in for a Talon FX in simulation. UpdateSim advances a simple
// mechanism model toward the active request inside the configured Motion Magic
// limits. When an output driver is attached the duty cycle is mirrored to it.
type SimTalon struct {
	lock sync.Mutex

	id         int
	name       string
	freeSpeed  float64 // mechanism turns/s at nominal voltage
	cfg        TalonFXConfiguration
	configured bool

	request   Request
	position  float64
	velocity  float64
	dutyCycle float64

	output command.OutputDriver
	logger log.Logger
}

func NewSimTalon(id int, name string, freeSpeed float64, output command.OutputDriver, logger log.Logger) *SimTalon {
	return &SimTalon{
		id:        id,
		name:      name,
		freeSpeed: freeSpeed,
		request:   NeutralOut{},
		output:    output,
		logger:    logger.WithField("motor", fmt.Sprintf("%s(%d)", name, id)),
	}
}

func (t *SimTalon) Apply(cfg TalonFXConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("failed applying config to %s: %w", t.name, err)
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	t.cfg = cfg
	t.configured = true
	t.logger.Debugf("configuration applied")
	return nil
}

func (t *SimTalon) SetControl(req Request) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.configured {
		return fmt.Errorf("%s: %w", t.name, ErrNotConfigured)
	}

	switch r := req.(type) {
	case DutyCycleOut:
		r.Output = clamp(r.Output, -1, 1)
		t.request = r
	case NeutralOut, MotionMagicVelocityVoltage:
		t.request = r
	case MotionMagicVoltage:
		r.Position = t.limitPosition(r.Position)
		t.request = r
	default:
		return fmt.Errorf("%s %T: %w", t.name, req, ErrUnsupportedRequest)
	}
	return nil
}

func (t *SimTalon) Position() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.position
}

func (t *SimTalon) Velocity() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.velocity
}

func (t *SimTalon) DutyCycle() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.dutyCycle
}

func (t *SimTalon) AppliedRequest() Request {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.request
}

// SetPosition seeds the simulated mechanism position.
func (t *SimTalon) SetPosition(turns float64) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.position = turns
	t.velocity = 0
}

// UpdateSim advances the simulated mechanism by dt at the given supply voltage.
func (t *SimTalon) UpdateSim(dt time.Duration, supplyVolts float64) {
	t.lock.Lock()
	seconds := dt.Seconds()
	maxVel := t.freeSpeed * clamp(supplyVolts, 0, nominalVoltage) / nominalVoltage
	accel := t.cfg.MotionMagic.Acceleration
	if accel <= 0 {
		accel = math.Inf(1)
	}
	maxStep := accel * seconds

	switch r := t.request.(type) {
	case DutyCycleOut:
		t.velocity = approach(t.velocity, r.Output*maxVel, maxStep)
		t.position += t.velocity * seconds
	case NeutralOut:
		if t.cfg.MotorOutput.BrakeMode {
			t.velocity = 0
		} else {
			t.velocity = approach(t.velocity, 0, maxStep)
		}
		t.position += t.velocity * seconds
	case MotionMagicVelocityVoltage:
		step := maxStep
		if r.Acceleration > 0 {
			step = r.Acceleration * seconds
		}
		t.velocity = approach(t.velocity, clamp(r.Velocity, -maxVel, maxVel), step)
		t.position += t.velocity * seconds
	case MotionMagicVoltage:
		t.stepProfile(r.Position, maxVel, accel, seconds)
	}

	t.applySoftLimits()

	if r, ok := t.request.(DutyCycleOut); ok {
		t.dutyCycle = r.Output
	} else if maxVel > 0 {
		t.dutyCycle = clamp(t.velocity/maxVel, -1, 1)
	} else {
		t.dutyCycle = 0
	}

	duty := t.dutyCycle
	if t.cfg.MotorOutput.Inverted {
		duty = -duty
	}
	output := t.output
	t.lock.Unlock()

	if output != nil {
		err := output.Set(command.DriverCommand{Name: t.name, Value: duty, Min: -1, Max: 1})
		if err != nil {
			t.logger.Warnf("failed mirroring duty cycle: %s", err.Error())
		}
	}
}

// stepProfile moves toward target with a trapezoidal velocity limit.
func (t *SimTalon) stepProfile(target, maxVel, accel, seconds float64) {
	cruise := t.cfg.MotionMagic.CruiseVelocity
	if cruise <= 0 || cruise > maxVel {
		cruise = maxVel
	}

	errBefore := target - t.position
	desired := math.Copysign(math.Min(cruise, math.Sqrt(2*accel*math.Abs(errBefore))), errBefore)
	t.velocity = approach(t.velocity, desired, accel*seconds)
	t.position += t.velocity * seconds

	errAfter := target - t.position
	if errBefore == 0 || math.Signbit(errAfter) != math.Signbit(errBefore) || math.Abs(errAfter) < 1e-6 {
		t.position = target
		t.velocity = 0
	}
}

func (t *SimTalon) limitPosition(turns float64) float64 {
	limits := t.cfg.SoftLimits
	if limits.ForwardEnable && turns > limits.ForwardThreshold {
		return limits.ForwardThreshold
	}
	if limits.ReverseEnable && turns < limits.ReverseThreshold {
		return limits.ReverseThreshold
	}
	return turns
}

func (t *SimTalon) applySoftLimits() {
	limits := t.cfg.SoftLimits
	if limits.ForwardEnable && t.position > limits.ForwardThreshold {
		t.position = limits.ForwardThreshold
		t.velocity = math.Min(t.velocity, 0)
	}
	if limits.ReverseEnable && t.position < limits.ReverseThreshold {
		t.position = limits.ReverseThreshold
		t.velocity = math.Max(t.velocity, 0)
	}
}

func approach(current, target, maxStep float64) float64 {
	if math.IsInf(maxStep, 1) {
		return target
	}
	diff := target - current
	if math.Abs(diff) <= maxStep {
		return target
	}
	if diff > 0 {
		return current + maxStep
	}
	return current - maxStep
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
