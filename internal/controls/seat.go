// Package controls turns the control states streamed by each operator seat
// into robot actions.
package controls

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/Speshl/gorrc_frc/internal/models"
	"github.com/prometheus/procfs"
)

const (
	DefaultSafetyTimeout = 200 * time.Millisecond
	DefaultMaxLatencyMs  = 200
)

// Parser acts on the change between the previously applied control state and the newest one.
type Parser func(last, next models.ControlState)

// HudUpdater builds the lines shown on the seat's heads up display.
type HudUpdater func(netInfo procfs.NetDevLine) models.Hud

// Seat receives control states from one operator. While the seat is active
// the newest state is handed to the parser each robot loop; when it goes
// quiet for longer than the safety timeout the centerer runs instead.
type Seat struct {
	lock sync.RWMutex
	seat *models.Seat

	parser     Parser
	centerer   func()
	hudUpdater HudUpdater

	seatType      string
	active        bool
	safetyTimeout time.Duration

	buttonMasks []uint32

	nextCommand     models.ControlState
	lastCommand     models.ControlState
	lastCommandTime time.Time

	now    func() time.Time
	logger log.Logger
}

func NewSeat(seat *models.Seat, seatType string, safetyTimeout time.Duration, parser Parser, centerer func(), hudUpdater HudUpdater, logger log.Logger) *Seat {
	if safetyTimeout <= 0 {
		safetyTimeout = DefaultSafetyTimeout
	}
	return &Seat{
		seat:          seat,
		parser:        parser,
		centerer:      centerer,
		hudUpdater:    hudUpdater,
		seatType:      seatType,
		safetyTimeout: safetyTimeout,
		buttonMasks:   BuildButtonMasks(),
		now:           time.Now,
		logger:        logger.WithField("seat", seatType),
	}
}

func (c *Seat) Type() string {
	return c.seatType
}

func (c *Seat) IsActive() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.active
}

// Start collects control states until ctx is done or the command channel closes.
func (c *Seat) Start(ctx context.Context) error {
	c.logger.Infof("starting %s seat", c.seatType)

	safetyTicker := time.NewTicker(c.safetyTimeout)
	defer safetyTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.Infof("stopping %s seat state syncer: %s", c.seatType, ctx.Err().Error())
			return ctx.Err()
		case <-safetyTicker.C:
			c.lock.Lock()
			c.expireLocked()
			c.lock.Unlock()
		case command, ok := <-c.seat.CommandChannel:
			if !ok {
				return fmt.Errorf("%s seat command channel closed", c.seatType)
			}
			c.receive(command)
		}
	}
}

func (c *Seat) receive(command models.ControlState) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.nextCommand.TimeStamp == 0 {
		c.nextCommand = command
	}

	// states can arrive out of order over the data channel
	if command.TimeStamp >= c.nextCommand.TimeStamp {
		c.nextCommand = command
		c.lastCommandTime = c.now()
		c.active = true
	}
}

func (c *Seat) expireLocked() {
	if c.active && c.now().Sub(c.lastCommandTime) > c.safetyTimeout {
		c.logger.Debugf("setting %s seat inactive due to time since last command", c.seatType)
		c.active = false
		c.lastCommand = models.ControlState{}
	}
}

// ApplyCommand runs once per robot loop. The first state after the seat goes
// active and any state arriving more than DefaultMaxLatencyMs after the last
// one only become the new baseline.
func (c *Seat) ApplyCommand() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.expireLocked()
	if !c.active {
		if c.centerer != nil {
			c.centerer()
		}
		return
	}

	c.nextCommand.Buttons = ParseButtons(c.nextCommand.BitButton, c.buttonMasks)
	if c.lastCommand.TimeStamp == 0 {
		c.logger.Debugf("skipping first command")
		c.lastCommand = c.nextCommand
		return
	}

	if c.nextCommand.TimeStamp-c.lastCommand.TimeStamp > DefaultMaxLatencyMs {
		c.logger.Debugf("skipping command due to latency")
		c.lastCommand = c.nextCommand
		return
	}

	if c.parser != nil {
		c.parser(c.lastCommand, c.nextCommand)
	}
	c.lastCommand = c.nextCommand
}

// UpdateHud pushes a HUD to an active seat without blocking the robot loop.
func (c *Seat) UpdateHud(netInfo procfs.NetDevLine) {
	if !c.IsActive() || c.hudUpdater == nil {
		return
	}

	select {
	case c.seat.HudChannel <- c.hudUpdater(netInfo):
	default:
		c.logger.Debugf("%s seat hud channel full, skipping", c.seatType)
	}
}
