// Package command holds the contract for output drivers that turn a named
// value into a physical PWM signal.
package command

type DriverCommand struct {
	Name  string
	Value float64
	Min   float64
	Max   float64
}

type OutputDriver interface {
	Init() error
	Set(DriverCommand) error
	SetMany([]DriverCommand) error
	Stop() error
}

func MapToRange(value, min, max, minReturn, maxReturn float64) float64 {
	mappedValue := (maxReturn-minReturn)*(value-min)/(max-min) + minReturn

	if mappedValue > maxReturn {
		return maxReturn
	} else if mappedValue < minReturn {
		return minReturn
	} else {
		return mappedValue
	}
}
