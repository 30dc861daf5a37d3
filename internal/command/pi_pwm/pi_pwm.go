package pipwm

import (
	"fmt"
	"sync"

	"github.com/Speshl/gorrc_frc/internal/command"
	"github.com/Speshl/gorrc_frc/internal/config"
	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/stianeikeland/go-rpio/v4"
)

const (
	Frequency            = 100000
	CycleLength          = uint32(2000)
	MaxSupportedChannels = 2
)

var PinMap = []int{12, 13} // hardware pwm0, pwm1

var _ command.OutputDriver = (*CommandDriver)(nil)

// CommandDriver drives the two Raspberry Pi hardware PWM pins directly.
type CommandDriver struct {
	lock     sync.Mutex
	cfg      config.PWMConfig
	channels map[string]Channel
	logger   log.Logger
}

type Channel struct {
	name     string
	inverted bool
	offset   float64
	pin      rpio.Pin
	maxValue uint32
	minValue uint32
}

func NewCommandDriver(cfg config.PWMConfig, logger log.Logger) *CommandDriver {
	return &CommandDriver{
		cfg:    cfg,
		logger: logger.WithField("driver", "pi_pwm"),
	}
}

func (c *CommandDriver) Init() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	err := rpio.Open()
	if err != nil {
		return fmt.Errorf("failed opening rpio: %w", err)
	}

	channels := make(map[string]Channel, MaxSupportedChannels)
	for i := range c.cfg.Channels {
		if i >= MaxSupportedChannels {
			break
		}

		chCfg := c.cfg.Channels[i]
		channels[chCfg.Name] = Channel{
			name:     chCfg.Name,
			inverted: chCfg.Inverted,
			offset:   float64(chCfg.Offset) / 100,
			pin:      rpio.Pin(PinMap[i]),
			maxValue: uint32(chCfg.MaxPulse),
			minValue: uint32(chCfg.MinPulse),
		}
		channels[chCfg.Name].pin.Mode(rpio.Pwm)
		channels[chCfg.Name].pin.Freq(Frequency)
		c.logger.Infof("pwm channel added: %s", chCfg.Name)
	}
	c.channels = channels
	c.centerAll()
	return nil
}

func (c *CommandDriver) Stop() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.centerAll()
	err := rpio.Close()
	if err != nil {
		return fmt.Errorf("failed closing rpio: %w", err)
	}
	return nil
}

func (c *CommandDriver) centerAll() {
	c.logger.Infof("centering all pwm channels")
	for i := range c.channels {
		midValue := (c.channels[i].maxValue + c.channels[i].minValue) / 2
		c.channels[i].pin.DutyCycle(midValue, CycleLength)
	}
}

func (c *CommandDriver) SetMany(cmds []command.DriverCommand) error {
	for i := range cmds {
		err := c.Set(cmds[i])
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *CommandDriver) Set(cmd command.DriverCommand) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	ch, ok := c.channels[cmd.Name]
	if ok {
		mappedValue := command.MapToRange(cmd.Value+ch.offset, cmd.Min, cmd.Max, float64(ch.minValue), float64(ch.maxValue))
		if ch.inverted {
			mappedValue = float64(ch.maxValue) - mappedValue + float64(ch.minValue)
		}

		ch.pin.DutyCycle(uint32(mappedValue), CycleLength)
	}
	return nil
}
