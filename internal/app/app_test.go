package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Speshl/gorrc_frc/internal/autobuilder"
	"github.com/Speshl/gorrc_frc/internal/config"
	"github.com/Speshl/gorrc_frc/internal/driverstation"
	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/Speshl/gorrc_frc/internal/models"
	"github.com/google/uuid"
	socketio "github.com/googollee/go-socket.io"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	socketio.Conn
}

func (fakeConn) ID() string {
	return "test-conn"
}

type emitted struct {
	event string
	args  []interface{}
}

type fakeClient struct {
	handlers  map[string]interface{}
	emits     chan emitted
	connected bool
	closed    bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		handlers: make(map[string]interface{}),
		emits:    make(chan emitted, 10),
	}
}

func (f *fakeClient) OnEvent(event string, handler interface{}) {
	f.handlers[event] = handler
}

func (f *fakeClient) Connect() error {
	f.connected = true
	return nil
}

func (f *fakeClient) Emit(event string, args ...interface{}) {
	f.emits <- emitted{event: event, args: args}
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RobotCfg.Sim = true
	cfg.DrivetrainCfg.PathPlannerSettings = ""
	cfg.StatusCfg.Port = 0
	return cfg
}

func newTestApp(t *testing.T, client SignalClient) *App {
	t.Helper()
	t.Cleanup(autobuilder.Reset)
	a, err := NewApp(testConfig(t), client, log.Discard())
	require.NoError(t, err)
	return a
}

func mustEncode(t *testing.T, v any) string {
	t.Helper()
	msg, err := encode(v)
	require.NoError(t, err)
	return msg
}

func TestEncodeDecode(t *testing.T) {
	want := models.DriverStationState{Enabled: true, Mode: "teleop", Alliance: "blue", Station: 2}
	msg := mustEncode(t, want)

	got := models.DriverStationState{}
	require.NoError(t, decode(msg, &got))
	assert.Equal(t, want, got)

	assert.Error(t, decode("not base64!", &got))
}

func TestNewAppSeats(t *testing.T) {
	a := newTestApp(t, nil)
	require.Len(t, a.seats, config.DefaultSeatCount)
	assert.Len(t, a.userConns, config.DefaultSeatCount)
	assert.NotNil(t, a.simSource)
	assert.NotNil(t, a.status)
}

func TestBuildOutputDriver(t *testing.T) {
	driver, err := buildOutputDriver(config.PWMConfig{Enabled: false}, log.Discard())
	require.NoError(t, err)
	assert.Nil(t, driver)

	driver, err = buildOutputDriver(config.PWMConfig{Enabled: true, Driver: "pca9685"}, log.Discard())
	require.NoError(t, err)
	assert.NotNil(t, driver)

	_, err = buildOutputDriver(config.PWMConfig{Enabled: true, Driver: "servo_hat"}, log.Discard())
	assert.Error(t, err)
}

func TestRegisterHandlers(t *testing.T) {
	client := newFakeClient()
	a := newTestApp(t, client)

	require.NoError(t, a.RegisterHandlers())
	assert.True(t, client.connected)
	for _, event := range []string{"offer", "candidate", "register_success", "ds_state"} {
		assert.Contains(t, client.handlers, event)
	}
}

func TestRegisterHandlersWithoutServer(t *testing.T) {
	a := newTestApp(t, nil)
	assert.NoError(t, a.RegisterHandlers())
}

func TestOnDriverStation(t *testing.T) {
	a := newTestApp(t, nil)

	a.onDriverStation(fakeConn{}, mustEncode(t, models.DriverStationState{Enabled: true, Mode: "autonomous", Alliance: "red"}))
	assert.Equal(t, driverstation.ModeAutonomous, a.station.Mode())
	alliance, ok := a.station.GetAlliance()
	assert.True(t, ok)
	assert.Equal(t, driverstation.Red, alliance)

	a.onDriverStation(fakeConn{}, "garbage")
	assert.Equal(t, driverstation.ModeAutonomous, a.station.Mode())
}

func TestOnRegisterSuccess(t *testing.T) {
	a := newTestApp(t, nil)

	resp := models.ConnectResp{
		Robot: models.Robot{Id: uuid.New(), Name: "Alpha", ShortName: "alpha", Team: 9999},
		Event: models.Event{Id: uuid.New(), Name: "Week Zero", ShortName: "wk0", Match: "Q1"},
	}
	a.onRegisterSuccess(fakeConn{}, mustEncode(t, resp))
	assert.Equal(t, resp.Robot, a.robotInfo)
	assert.Equal(t, resp.Event, a.eventInfo)
}

func TestAnswerOfferRejectsUnknownSeat(t *testing.T) {
	a := newTestApp(t, nil)

	_, err := a.answerOffer(models.Offer{SeatNumber: len(a.seats)})
	assert.Error(t, err)
	_, err = a.answerOffer(models.Offer{SeatNumber: -1})
	assert.Error(t, err)
}

func TestAnswerOfferBadSDPKeepsLiveSession(t *testing.T) {
	a := newTestApp(t, nil)

	live := NewConnection(context.Background(), a.seats[0], nil, log.Discard())
	a.setConnection(0, live)

	_, err := a.answerOffer(models.Offer{
		SeatNumber: 0,
		Offer:      webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "garbage"},
	})
	require.Error(t, err)
	assert.Same(t, live, a.connection(0))
	assert.NoError(t, live.Ctx.Err())
}

func TestAnswerOfferBadSDPLeavesSeatEmpty(t *testing.T) {
	a := newTestApp(t, nil)

	_, err := a.answerOffer(models.Offer{
		SeatNumber: 1,
		Offer:      webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "garbage"},
	})
	require.Error(t, err)
	assert.Nil(t, a.connection(1))
}

func TestOnICECandidateWithoutConnection(t *testing.T) {
	a := newTestApp(t, nil)
	a.onICECandidate(fakeConn{}, mustEncode(t, models.IceCandidate{SeatNum: 0}))
	assert.Nil(t, a.connection(0))
}

func TestStartRegistersWithServer(t *testing.T) {
	client := newFakeClient()
	a := newTestApp(t, client)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.NoError(t, a.Start(ctx))
	assert.True(t, client.closed)

	select {
	case e := <-client.emits:
		assert.Equal(t, "robot_connect", e.event)
		require.Len(t, e.args, 1)
		req := models.ConnectReq{}
		require.NoError(t, decode(e.args[0].(string), &req))
		assert.Equal(t, config.DefaultSeatCount, req.SeatCount)
	default:
		t.Fatal("robot_connect was not emitted")
	}
}

func TestConnectionCommandHandler(t *testing.T) {
	seat := models.Seat{Index: 1, CommandChannel: make(chan models.ControlState, 1), HudChannel: make(chan models.Hud, 1)}
	conn := NewConnection(context.Background(), seat, nil, log.Discard())
	defer conn.Disconnect()

	data, err := json.Marshal(models.ControlState{Axes: []float64{0.5}, BitButton: 3, TimeStamp: 42})
	require.NoError(t, err)
	conn.onCommandHandler(data)

	select {
	case state := <-seat.CommandChannel:
		assert.Equal(t, int64(42), state.TimeStamp)
		assert.Equal(t, uint32(3), state.BitButton)
	default:
		t.Fatal("command was not forwarded")
	}

	conn.onCommandHandler([]byte("{"))
	assert.Empty(t, seat.CommandChannel)
}

func TestConnectionPingHandler(t *testing.T) {
	seat := models.Seat{CommandChannel: make(chan models.ControlState, 1), HudChannel: make(chan models.Hud, 1)}
	conn := NewConnection(context.Background(), seat, nil, log.Discard())
	defer conn.Disconnect()

	data, err := json.Marshal(models.Ping{Source: "operator", TimeStamp: time.Now().UnixMilli()})
	require.NoError(t, err)
	conn.onPingHandler(data)
	assert.Empty(t, conn.PingInput)

	data, err = json.Marshal(models.Ping{Source: PingSourceName, TimeStamp: time.Now().UnixMilli() - 15})
	require.NoError(t, err)
	conn.onPingHandler(data)
	require.Len(t, conn.PingInput, 1)
	assert.GreaterOrEqual(t, <-conn.PingInput, int64(15))
}

func TestHudText(t *testing.T) {
	hud := models.Hud{Lines: []string{"RxPkt:1", "Mode:teleop"}}
	got := models.Hud{}
	require.NoError(t, json.Unmarshal([]byte(hudText(hud, 12)), &got))
	assert.Equal(t, []string{"RxPkt:1 | Ping:12ms", "Mode:teleop"}, got.Lines)
	assert.Equal(t, "RxPkt:1", hud.Lines[0])
}
