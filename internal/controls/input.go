package controls

import (
	"fmt"
	"math"

	"github.com/Speshl/gorrc_frc/internal/command"
	"github.com/Speshl/gorrc_frc/internal/models"
)

const (
	MinInput = -1.0
	MaxInput = 1.0
)

// Creates 32 uints each with only 1 bit. 1,2,4,8,16,32...
func BuildButtonMasks() []uint32 {
	buttonMasks := make([]uint32, 32)
	for i := 0; i < 32; i++ {
		buttonMasks[i] = uint32(1) << i
	}
	return buttonMasks
}

func ParseButtons(bitButton uint32, masks []uint32) []bool {
	buttons := make([]bool, len(masks))
	for i := range masks {
		buttons[i] = (bitButton & masks[i]) != 0
	}
	return buttons
}

// NewPress calls f when the button went down between oldState and newState.
func NewPress(oldState, newState models.ControlState, buttonIndex int, f func()) (bool, error) {
	if len(newState.Buttons) != len(oldState.Buttons) {
		return false, fmt.Errorf("length of buttons states mismatched")
	}

	if buttonIndex < 0 || buttonIndex >= len(oldState.Buttons) {
		return false, fmt.Errorf("buttonIndex out of bounds - buttonIndex: %d maxIndex: %d", buttonIndex, len(oldState.Buttons)-1)
	}

	if newState.Buttons[buttonIndex] && !oldState.Buttons[buttonIndex] {
		f()
		return true, nil
	}
	return false, nil
}

// NewRelease calls f when the button came up between oldState and newState.
func NewRelease(oldState, newState models.ControlState, buttonIndex int, f func()) (bool, error) {
	if len(newState.Buttons) != len(oldState.Buttons) {
		return false, fmt.Errorf("length of buttons states mismatched")
	}

	if buttonIndex < 0 || buttonIndex >= len(oldState.Buttons) {
		return false, fmt.Errorf("buttonIndex out of bounds - buttonIndex: %d maxIndex: %d", buttonIndex, len(oldState.Buttons)-1)
	}

	if !newState.Buttons[buttonIndex] && oldState.Buttons[buttonIndex] {
		f()
		return true, nil
	}
	return false, nil
}

func GetValueWithMidDeadZone(value, midValue, deadZone float64) float64 {
	if value > midValue && midValue+deadZone > value {
		return midValue
	} else if value < midValue && midValue-deadZone < value {
		return midValue
	}
	return value
}

func GetValueWithLowDeadZone(value, lowValue, deadZone float64) float64 {
	if value > lowValue && lowValue+deadZone > value {
		return lowValue
	}
	return value
}

// PowCurve raises the magnitude of value to curve, keeping the sign.
func PowCurve(value, curve float64) float64 {
	return math.Copysign(math.Pow(math.Abs(value), curve), value)
}

// Axis reads an axis from a control state, zero when the client sent fewer axes.
func Axis(state models.ControlState, index int) float64 {
	if index < 0 || index >= len(state.Axes) {
		return 0
	}
	return state.Axes[index]
}

// MapAxisWithDeadZone clamps a stick into the output range after removing
// the dead zone around center.
func MapAxisWithDeadZone(value, minIn, maxIn, minOut, maxOut, deadZone, center float64) float64 {
	value = GetValueWithMidDeadZone(value, center, deadZone)
	return command.MapToRange(value, minIn, maxIn, minOut, maxOut)
}
