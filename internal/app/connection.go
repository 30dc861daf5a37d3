package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/Speshl/gorrc_frc/internal/models"
	"github.com/pion/webrtc/v3"
)

const (
	PingSourceName = "robot"

	pingPeriod = 1 * time.Second
	hudPeriod  = 33 * time.Millisecond // 30hz
)

// Connection is one operator's WebRTC session bound to a seat.
type Connection struct {
	lock sync.Mutex

	SeatNumber     int
	PeerConnection *webrtc.PeerConnection
	Ctx            context.Context
	CtxCancel      context.CancelFunc
	CommandChannel chan models.ControlState
	HudChannel     chan models.Hud

	hudOutput  *webrtc.DataChannel
	pingOutput *webrtc.DataChannel
	PingInput  chan int64

	logger log.Logger
}

func NewConnection(ctx context.Context, seat models.Seat, peerConn *webrtc.PeerConnection, logger log.Logger) *Connection {
	connCtx, cancel := context.WithCancel(ctx)
	return &Connection{
		SeatNumber:     seat.Index,
		PeerConnection: peerConn,
		Ctx:            connCtx,
		CtxCancel:      cancel,
		CommandChannel: seat.CommandChannel,
		HudChannel:     seat.HudChannel,
		PingInput:      make(chan int64, 10),
		logger:         logger.WithField("seat", seat.Index),
	}
}

func (c *Connection) Disconnect() {
	c.logger.Infof("operator disconnecting")
	c.CtxCancel()
	if c.PeerConnection != nil {
		err := c.PeerConnection.Close()
		if err != nil {
			c.logger.Warnf("failed closing peer connection: %s", err.Error())
		}
	}
}

func (c *Connection) RegisterHandlers() {
	c.PeerConnection.OnICEConnectionStateChange(c.onICEConnectionStateChange)
	c.PeerConnection.OnICECandidate(c.onICECandidate)
	c.PeerConnection.OnDataChannel(c.onDataChannel)
}

func (c *Connection) setOutputs(hud, ping *webrtc.DataChannel) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if hud != nil {
		c.hudOutput = hud
	}
	if ping != nil {
		c.pingOutput = ping
	}
}

func (c *Connection) outputs() (hud, ping *webrtc.DataChannel) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.hudOutput, c.pingOutput
}

// updateLoop sends pings and the latest hud to the operator until the connection closes.
func (c *Connection) updateLoop() {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()
	hudTicker := time.NewTicker(hudPeriod)
	defer hudTicker.Stop()

	sent := true
	hudToSend := models.Hud{}
	lastPing := int64(0)
	for {
		select {
		case <-c.Ctx.Done():
			c.logger.Debugf("stopping operator updater: %s", c.Ctx.Err().Error())
			return
		case hud, ok := <-c.HudChannel:
			if !ok {
				c.logger.Warnf("hud channel closed")
				return
			}
			hudToSend = hud
			sent = false
		case <-pingTicker.C:
			_, pingOutput := c.outputs()
			if pingOutput == nil {
				continue
			}
			data, err := json.Marshal(models.Ping{
				TimeStamp: time.Now().UnixMilli(),
				Source:    PingSourceName,
			})
			if err != nil {
				c.logger.Errorf("failed encoding ping: %s", err.Error())
				continue
			}
			err = pingOutput.Send(data)
			if err != nil {
				c.logger.Warnf("failed sending ping: %s", err.Error())
			}
		case rtt := <-c.PingInput:
			lastPing = rtt
		case <-hudTicker.C:
			hudOutput, _ := c.outputs()
			if sent || hudOutput == nil {
				continue
			}
			sent = true
			err := hudOutput.SendText(hudText(hudToSend, lastPing))
			if err != nil {
				c.logger.Warnf("failed sending hud: %s", err.Error())
			}
		}
	}
}

// hudText appends the round trip time to the first hud line.
func hudText(hud models.Hud, pingMs int64) string {
	lines := append([]string(nil), hud.Lines...)
	if len(lines) > 0 {
		lines[0] = fmt.Sprintf("%s | Ping:%dms", lines[0], pingMs)
	}
	data, err := json.Marshal(models.Hud{Lines: lines})
	if err != nil {
		return ""
	}
	return string(data)
}
