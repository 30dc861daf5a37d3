package app

import (
	"encoding/json"
	"time"

	"github.com/Speshl/gorrc_frc/internal/models"
	"github.com/pion/webrtc/v3"
)

func (c *Connection) onICEConnectionStateChange(connectionState webrtc.ICEConnectionState) {
	c.logger.Infof("connection state has changed: %s", connectionState.String())
	switch connectionState {
	case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateClosed:
		c.CtxCancel()
	}
}

func (c *Connection) onICECandidate(candidate *webrtc.ICECandidate) {
	if candidate != nil {
		c.logger.Debugf("gathered ICE candidate: %s", candidate.String())
	}
}

func (c *Connection) onDataChannel(d *webrtc.DataChannel) {
	c.logger.Infof("new data channel: %s", d.Label())

	d.OnOpen(func() {
		c.logger.Infof("data channel open: %s", d.Label())
		switch d.Label() {
		case "hud":
			c.setOutputs(d, nil)
		case "ping":
			c.setOutputs(nil, d)
		}
	})

	switch d.Label() {
	case "command":
		d.OnMessage(func(msg webrtc.DataChannelMessage) { c.onCommandHandler(msg.Data) })
	case "ping":
		d.OnMessage(func(msg webrtc.DataChannelMessage) { c.onPingHandler(msg.Data) })
	case "hud":
	default:
		c.logger.Warnf("received message on unsupported channel: %s", d.Label())
	}
}

func (c *Connection) onCommandHandler(data []byte) {
	state := models.ControlState{}
	err := json.Unmarshal(data, &state)
	if err != nil {
		c.logger.Warnf("failed unmarshalling command: %s", data)
		return
	}

	select {
	case c.CommandChannel <- state:
	case <-c.Ctx.Done():
	default:
		c.logger.Warnf("command channel full, dropping command")
	}
}

func (c *Connection) onPingHandler(data []byte) {
	ping := models.Ping{}
	err := json.Unmarshal(data, &ping)
	if err != nil {
		c.logger.Warnf("failed unmarshalling ping: %s", data)
		return
	}
	if ping.Source != PingSourceName {
		return
	}

	roundTripTime := time.Now().UnixMilli() - ping.TimeStamp
	select {
	case c.PingInput <- roundTripTime:
	default:
	}
}
