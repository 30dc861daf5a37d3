// Package units holds the small set of mechanism units the robot code passes around.
package units

import "math"

// Degrees is an angle in degrees.
type Degrees float64

// Turns is an angle in mechanism rotations.
type Turns float64

// RPM is an angular velocity in revolutions per minute.
type RPM float64

// RPS is an angular velocity in revolutions per second.
type RPS float64

func (d Degrees) Turns() Turns {
	return Turns(d / 360.0)
}

func (d Degrees) Radians() float64 {
	return float64(d) * math.Pi / 180.0
}

func (t Turns) Degrees() Degrees {
	return Degrees(t * 360.0)
}

func (r RPM) RPS() RPS {
	return RPS(r / 60.0)
}

func (r RPS) RPM() RPM {
	return RPM(r * 60.0)
}
