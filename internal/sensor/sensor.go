// Package sensor provides the digital inputs used to detect game pieces.
package sensor

import (
	"fmt"
	"sync/atomic"

	"github.com/stianeikeland/go-rpio/v4"
)

type DigitalInput interface {
	Get() bool
}

var (
	_ DigitalInput = (*SimInput)(nil)
	_ DigitalInput = (*PinInput)(nil)
)

// SimInput is a digital input whose value is set by the simulation or a test.
type SimInput struct {
	value atomic.Bool
}

func NewSimInput() *SimInput {
	return &SimInput{}
}

func (s *SimInput) Get() bool {
	return s.value.Load()
}

func (s *SimInput) Set(value bool) {
	s.value.Store(value)
}

// PinInput reads a beam break or limit switch wired to a Raspberry Pi GPIO pin.
type PinInput struct {
	pin       rpio.Pin
	activeLow bool
}

// OpenPinInput maps GPIO memory and configures pin as a pulled-up input.
func OpenPinInput(pin int, activeLow bool) (*PinInput, error) {
	err := rpio.Open()
	if err != nil {
		return nil, fmt.Errorf("failed opening rpio for pin %d: %w", pin, err)
	}

	p := rpio.Pin(pin)
	p.Input()
	if activeLow {
		p.PullUp()
	} else {
		p.PullDown()
	}

	return &PinInput{pin: p, activeLow: activeLow}, nil
}

func (p *PinInput) Get() bool {
	high := p.pin.Read() == rpio.High
	if p.activeLow {
		return !high
	}
	return high
}
