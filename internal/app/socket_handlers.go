package app

import (
	"fmt"

	"github.com/Speshl/gorrc_frc/internal/models"
	socketio "github.com/googollee/go-socket.io"
	"github.com/pion/webrtc/v3"
)

const stunServer = "stun:stun.l.google.com:19302"

func (a *App) onOffer(socketConn socketio.Conn, msg string) {
	offer := models.Offer{}
	err := decode(msg, &offer)
	if err != nil {
		a.logger.Warnf("offer from %s failed decoding: %s", socketConn.ID(), err.Error())
		return
	}

	answer, err := a.answerOffer(offer)
	if err != nil {
		a.logger.Errorf("failed answering offer for seat %d: %s", offer.SeatNumber, err.Error())
		return
	}

	encodedAnswer, err := encode(answer)
	if err != nil {
		a.logger.Errorf("failed encoding answer: %s", err.Error())
		return
	}
	a.logger.Infof("sending answer for seat %d", offer.SeatNumber)
	a.client.Emit("answer", encodedAnswer)
}

// answerOffer replaces any session on the offered seat with a new peer connection.
func (a *App) answerOffer(offer models.Offer) (models.Answer, error) {
	if offer.SeatNumber < 0 || offer.SeatNumber >= len(a.seats) {
		return models.Answer{}, fmt.Errorf("unsupported seat number %d", offer.SeatNumber)
	}

	peerConn, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{stunServer}}},
	})
	if err != nil {
		return models.Answer{}, fmt.Errorf("failed creating peer connection: %w", err)
	}

	conn := NewConnection(a.ctx, a.seats[offer.SeatNumber], peerConn, a.logger)
	conn.RegisterHandlers()

	err = peerConn.SetRemoteDescription(offer.Offer)
	if err != nil {
		conn.Disconnect()
		return models.Answer{}, fmt.Errorf("failed setting remote description: %w", err)
	}

	answer, err := peerConn.CreateAnswer(nil)
	if err != nil {
		conn.Disconnect()
		return models.Answer{}, fmt.Errorf("failed creating answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(peerConn)
	err = peerConn.SetLocalDescription(answer)
	if err != nil {
		conn.Disconnect()
		return models.Answer{}, fmt.Errorf("failed setting local description: %w", err)
	}

	// only one signalling message is exchanged, so wait for every candidate
	<-gatherComplete

	// the seat's live session is only replaced once negotiation succeeded
	a.setConnection(offer.SeatNumber, conn)
	go conn.updateLoop()

	return models.Answer{
		Answer:     peerConn.LocalDescription(),
		SeatNumber: offer.SeatNumber,
	}, nil
}

func (a *App) onICECandidate(socketConn socketio.Conn, msg string) {
	candidate := models.IceCandidate{}
	err := decode(msg, &candidate)
	if err != nil {
		a.logger.Warnf("ice candidate from %s failed decoding: %s", socketConn.ID(), err.Error())
		return
	}

	conn := a.connection(candidate.SeatNum)
	if conn == nil {
		a.logger.Warnf("ice candidate for seat %d without a connection", candidate.SeatNum)
		return
	}

	err = conn.PeerConnection.AddICECandidate(candidate.Candidate)
	if err != nil {
		a.logger.Warnf("failed adding ice candidate for seat %d: %s", candidate.SeatNum, err.Error())
	}
}

func (a *App) onRegisterSuccess(socketConn socketio.Conn, msg string) {
	resp := models.ConnectResp{}
	err := decode(msg, &resp)
	if err != nil {
		a.logger.Warnf("register response from %s failed decoding: %s", socketConn.ID(), err.Error())
		return
	}

	a.infoLock.Lock()
	a.robotInfo = resp.Robot
	a.eventInfo = resp.Event
	a.infoLock.Unlock()

	a.logger.Infof("robot registered as %s(%s) team %d @ %s(%s) match %s with %d seats available",
		resp.Robot.Name, resp.Robot.ShortName, resp.Robot.Team, resp.Event.Name, resp.Event.ShortName, resp.Event.Match, len(a.seats))
}

// onDriverStation forwards the match state pushed by the field server.
func (a *App) onDriverStation(socketConn socketio.Conn, msg string) {
	state := models.DriverStationState{}
	err := decode(msg, &state)
	if err != nil {
		a.logger.Warnf("driver station state from %s failed decoding: %s", socketConn.ID(), err.Error())
		return
	}
	a.station.Update(state)
}

func (a *App) setConnection(seat int, conn *Connection) {
	a.connLock.Lock()
	old := a.userConns[seat]
	a.userConns[seat] = conn
	a.connLock.Unlock()

	if old != nil {
		old.Disconnect()
	}
}

func (a *App) connection(seat int) *Connection {
	a.connLock.Lock()
	defer a.connLock.Unlock()
	if seat < 0 || seat >= len(a.userConns) {
		return nil
	}
	return a.userConns[seat]
}

func (a *App) disconnectAll() {
	a.connLock.Lock()
	conns := a.userConns
	a.userConns = make([]*Connection, len(conns))
	a.connLock.Unlock()

	for _, conn := range conns {
		if conn != nil {
			conn.Disconnect()
		}
	}
}
