package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
)

const ClientAxesCount = 10

type ConnectReq struct {
	Key       string `json:"key"`
	Password  string `json:"password"`
	SeatCount int    `json:"seat_count"`
}

type ConnectResp struct {
	Robot Robot
	Event Event
}

type Robot struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
	Team      int       `json:"team"`
}

type Event struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
	Match     string    `json:"match"`
}

// DriverStationState is pushed by the field server whenever the match state changes.
type DriverStationState struct {
	Enabled   bool   `json:"enabled"`
	Mode      string `json:"mode"`     // disabled, teleop, autonomous, test
	Alliance  string `json:"alliance"` // red, blue or empty when not yet assigned
	Station   int    `json:"station"`
	MatchTime int64  `json:"match_time"`
	TimeStamp int64  `json:"time_stamp"`
}

type IceCandidate struct {
	Candidate      webrtc.ICECandidateInit `json:"candidate"`
	RobotShortName string                  `json:"robot_name"`
	SeatNum        int                     `json:"seat_number"`
	UserId         uuid.UUID               `json:"user_id"`
}

type Offer struct {
	Offer          webrtc.SessionDescription `json:"offer"`
	RobotShortName string                    `json:"robot_name"`
	SeatNumber     int                       `json:"seat_number"`
	UserId         uuid.UUID                 `json:"user_id"`
}

type Answer struct {
	Answer     *webrtc.SessionDescription `json:"answer"`
	SeatNumber int                        `json:"seat_number"`
}

type ControlState struct {
	Axes      []float64 `json:"axes"`
	BitButton uint32    `json:"bit_buttons"`
	TimeStamp int64     `json:"time_stamp"`
	Buttons   []bool
}

type Hud struct {
	Lines []string `json:"lines"`
}

type Ping struct {
	Source    string `json:"source"`
	TimeStamp int64  `json:"time_stamp"`
}

type Seat struct {
	Index          int
	CommandChannel chan ControlState
	HudChannel     chan Hud
}

// RobotStatus is the snapshot served by the status API.
type RobotStatus struct {
	Name           string    `json:"name"`
	Team           int       `json:"team"`
	Sim            bool      `json:"sim"`
	Mode           string    `json:"mode"`
	Enabled        bool      `json:"enabled"`
	Alliance       string    `json:"alliance"`
	X              float64   `json:"x"`
	Y              float64   `json:"y"`
	HeadingDeg     float64   `json:"heading_deg"`
	Vx             float64   `json:"vx"`
	Vy             float64   `json:"vy"`
	Omega          float64   `json:"omega"`
	VisionTargets  int       `json:"vision_targets"`
	AlgaeAngleDeg  float64   `json:"algae_angle_deg"`
	AlgaeIntakeRPM float64   `json:"algae_intake_rpm"`
	HasAlgae       bool      `json:"has_algae"`
	AutoConfigured bool      `json:"auto_configured"`
	ActiveSeats    []bool    `json:"active_seats"`
	BatteryVolts   float64   `json:"battery_volts"`
	UpdatedAt      time.Time `json:"updated_at"`
}
