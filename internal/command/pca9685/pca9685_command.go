package pca9685

import (
	"fmt"
	"sync"

	"github.com/Speshl/gorrc_frc/internal/command"
	"github.com/Speshl/gorrc_frc/internal/config"
	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/googolgl/go-i2c"
	"github.com/googolgl/go-pca9685"
)

const (
	MaxValue = 1.0
	MinValue = 0.0
	AcRange  = pca9685.ServoRangeDef

	MaxSupportedChannels = 16
)

var _ command.OutputDriver = (*CommandDriver)(nil)

// CommandDriver mirrors motor outputs onto PWM channels of a pca9685 board,
// e.g. for PWM-controlled speed controllers on a bench rig.
type CommandDriver struct {
	lock     sync.Mutex
	cfg      config.PWMConfig
	channels map[string]Channel
	driver   *pca9685.PCA9685
	logger   log.Logger
}

type Channel struct {
	name     string
	inverted bool
	offset   float64
	servo    *pca9685.Servo
}

func NewCommandDriver(cfg config.PWMConfig, logger log.Logger) *CommandDriver {
	return &CommandDriver{
		cfg:    cfg,
		logger: logger.WithField("driver", "pca9685"),
	}
}

func (c *CommandDriver) Init() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	bus, err := i2c.New(c.cfg.Address, c.cfg.I2CDevice)
	if err != nil {
		return fmt.Errorf("error starting i2c with address - %w", err)
	}

	c.driver, err = pca9685.New(bus, nil)
	if err != nil {
		return fmt.Errorf("error getting pwm driver - %w", err)
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
			servo: c.driver.ServoNew(chCfg.Channel, &pca9685.ServOptions{
				AcRange:  AcRange,
				MinPulse: float32(chCfg.MinPulse),
				MaxPulse: float32(chCfg.MaxPulse),
			}),
		}
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
	return nil
}

// centerAll puts every channel at neutral.
func (c *CommandDriver) centerAll() {
	c.logger.Infof("centering all pwm channels")
	for i := range c.channels {
		err := c.channels[i].servo.Fraction(0.5)
		if err != nil {
			c.logger.Warnf("failed centering %s: %s", c.channels[i].name, err.Error())
		}
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
	if !ok {
		return nil
	}

	mappedValue := command.MapToRange(cmd.Value+ch.offset, cmd.Min, cmd.Max, MinValue, MaxValue)
	if ch.inverted {
		mappedValue = MaxValue - mappedValue
	}

	err := ch.servo.Fraction(float32(mappedValue))
	if err != nil {
		return fmt.Errorf("failed setting pwm value - name: %s value: %.2f - error: %w", cmd.Name, mappedValue, err)
	}
	return nil
}
