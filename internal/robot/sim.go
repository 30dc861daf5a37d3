package robot

import (
	"math"
	"time"

	"github.com/Speshl/gorrc_frc/internal/motor"
	"github.com/Speshl/gorrc_frc/internal/sensor"
	"github.com/Speshl/gorrc_frc/internal/swerve"
)

const (
	batteryResistance = 0.015 // ohms
	minBatteryVoltage = 6.0

	driveCurrentAtMaxSpeed = 160.0 // A, all four modules
	mechanismStallCurrent  = 40.0  // A per motor at full duty

	algaeIntakeVelocity = 5.0 // mechanism turns/s, pulling in
	algaeAcquireTime    = 300 * time.Millisecond
	algaeReleaseTime    = 200 * time.Millisecond
)

// simBattery sags the supply voltage with the load the motors are drawing.
type simBattery struct {
	nominal    float64
	maxSpeed   float64
	drivetrain swerve.Drivetrain
	motors     []motor.Controller
}

func newSimBattery(nominal, maxSpeed float64, drivetrain swerve.Drivetrain, motors ...motor.Controller) *simBattery {
	if nominal <= 0 {
		nominal = swerve.DefaultNominalVoltage
	}
	return &simBattery{
		nominal:    nominal,
		maxSpeed:   maxSpeed,
		drivetrain: drivetrain,
		motors:     motors,
	}
}

func (b *simBattery) Voltage() float64 {
	current := 0.0
	if b.maxSpeed > 0 {
		speeds := b.drivetrain.GetState().Speeds
		current += math.Min(math.Hypot(speeds.Vx, speeds.Vy)/b.maxSpeed, 1) * driveCurrentAtMaxSpeed
	}
	for _, m := range b.motors {
		current += math.Abs(m.DutyCycle()) * mechanismStallCurrent
	}
	return math.Max(b.nominal-current*batteryResistance, minBatteryVoltage)
}

// algaeSim trips the simulated algae sensor after the intake has pulled in
// for a while and clears it once the intake has pushed out.
type algaeSim struct {
	sensor     *sensor.SimInput
	intakeTime time.Duration
	ejectTime  time.Duration
}

func newAlgaeSim(input *sensor.SimInput) *algaeSim {
	return &algaeSim{sensor: input}
}

// update advances the model by dt with the intake at velocity mechanism turns/s.
func (s *algaeSim) update(dt time.Duration, velocity float64) {
	switch {
	case velocity >= algaeIntakeVelocity:
		s.intakeTime += dt
		s.ejectTime = 0
	case velocity <= -algaeIntakeVelocity:
		s.ejectTime += dt
		s.intakeTime = 0
	default:
		s.intakeTime = 0
		s.ejectTime = 0
	}

	if !s.sensor.Get() && s.intakeTime >= algaeAcquireTime {
		s.sensor.Set(true)
	}
	if s.sensor.Get() && s.ejectTime >= algaeReleaseTime {
		s.sensor.Set(false)
	}
}
