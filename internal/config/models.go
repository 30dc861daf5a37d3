package config

import (
	"errors"

	"github.com/Speshl/gorrc_frc/internal/motor"
)

var ErrMissingField = errors.New("missing required config field")

const (
	AppEnvBase           = "FRC_"
	MaxSupportedChannels = 16

	DefaultRobotName    = "gorrc"
	DefaultTeam         = 0
	DefaultSim          = false
	DefaultLoopPeriodMs = 20

	DefaultServerEnabled = true
	DefaultServer        = "127.0.0.1:8181"
	DefaultKey           = ""
	DefaultPassword      = ""
	DefaultSeatCount     = 2

	DefaultLogLevel      = "info"
	DefaultLogFile       = ""
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3

	// Default PWM mirror options
	DefaultPWMEnabled = false
	DefaultPWMDriver  = "pca9685"
	DefaultAddress    = 0x40
	DefaultI2CDevice  = "/dev/i2c-1"
	DefaultMaxPulse   = 2250
	DefaultMinPulse   = 750

	DefaultDSTimeoutMs = 500

	// Default drivetrain options
	DefaultBluePerspectiveDeg  = 0.0
	DefaultRedPerspectiveDeg   = 180.0
	DefaultSimLoopPeriodMs     = 5
	DefaultMaxSpeed            = 4.5  // m/s
	DefaultMaxAngularRate      = 4.71 // rad/s, 3/4 rotation per second
	DefaultDriveDeadband       = 0.1
	DefaultStateStdDev         = 0.1
	DefaultNominalBattery      = 12.0
	DefaultPathPlannerSettings = "deploy/pathplanner/settings.json"
	DefaultTranslationP        = 5.0
	DefaultRotationP           = 5.0

	// Default vision options
	DefaultVisionEndpoint        = ""
	DefaultVisionTopic           = "vision"
	DefaultMaxSingleTagDistance  = 4.0  // m
	DefaultMaxPoseZ              = 0.75 // m
	DefaultVisionBufferSize      = 32
	DefaultVisionPollTimeoutMs   = 100
	DefaultVisionMaxMeasureAgeMs = 1500

	// Default algae options
	DefaultAlgaeAngleMotorID   = 20
	DefaultAlgaeIntakeMotorID  = 21
	DefaultAlgaeMinAngleDeg    = 0.0
	DefaultAlgaeMaxAngleDeg    = 110.0
	DefaultAlgaeStowAngleDeg   = 0.0
	DefaultAlgaeIntakeAngleDeg = 90.0
	DefaultAlgaeScoreAngleDeg  = 45.0
	DefaultAlgaeIntakeRPM      = 3000.0
	DefaultAlgaeEjectRPM       = -2000.0
	DefaultAlgaeEjectSeconds   = 0.5
	DefaultAlgaeAngleFreeSpeed = 2.2   // mechanism turns/s
	DefaultAlgaeIntakeFree     = 100.0 // mechanism turns/s
	DefaultAlgaeSensorPin      = -1    // simulated sensor
	DefaultAlgaeAngleGearRatio = 45.0

	DefaultAutoTrajectory = ""

	DefaultTelemetryPath     = ""
	DefaultTelemetryPeriodMs = 100

	DefaultStatusPort = 8080

	DefaultSafetyTimeoutMs = 200
	DefaultStickDeadZone   = 0.05
	DefaultNetInterface    = "wlan0"
)

type Config struct {
	RobotCfg         RobotConfig         `yaml:"robot"`
	ServerCfg        ServerConfig        `yaml:"server"`
	LoggingCfg       LoggingConfig       `yaml:"logging"`
	PWMCfg           PWMConfig           `yaml:"pwm"`
	DriverStationCfg DriverStationConfig `yaml:"driver_station"`
	DrivetrainCfg    DrivetrainConfig    `yaml:"drivetrain"`
	VisionCfg        VisionConfig        `yaml:"vision"`
	AlgaeCfg         AlgaeConfig         `yaml:"algae"`
	AutoCfg          AutoConfig          `yaml:"auto"`
	TelemetryCfg     TelemetryConfig     `yaml:"telemetry"`
	StatusCfg        StatusConfig        `yaml:"status"`
	ControlsCfg      ControlsConfig      `yaml:"controls"`
}

type RobotConfig struct {
	Name         string `yaml:"name"`
	Team         int    `yaml:"team"`
	Sim          bool   `yaml:"sim"`
	LoopPeriodMs int    `yaml:"loop_period_ms"`
}

type ServerConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Server    string `yaml:"server"`
	Key       string `yaml:"key"`
	Password  string `yaml:"password"`
	SeatCount int    `yaml:"seat_count"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// PWMConfig describes the optional PWM outputs that mirror motor duty cycles.
type PWMConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Driver    string          `yaml:"driver"` // pca9685 or pi_pwm
	Address   byte            `yaml:"address"`
	I2CDevice string          `yaml:"i2c_device"`
	Channels  []ChannelConfig `yaml:"channels"`
}

type ChannelConfig struct {
	Name     string  `yaml:"name"`
	Channel  int     `yaml:"channel"`
	MaxPulse float64 `yaml:"max_pulse"`
	MinPulse float64 `yaml:"min_pulse"`
	Inverted bool    `yaml:"inverted"`
	Offset   int     `yaml:"offset"` // percent of range
}

type DriverStationConfig struct {
	TimeoutMs int `yaml:"timeout_ms"`
}

type PIDConfig struct {
	P float64 `yaml:"p"`
	I float64 `yaml:"i"`
	D float64 `yaml:"d"`
}

type DrivetrainConfig struct {
	BluePerspectiveDeg  float64    `yaml:"blue_perspective_deg"`
	RedPerspectiveDeg   float64    `yaml:"red_perspective_deg"`
	SimLoopPeriodMs     int        `yaml:"sim_loop_period_ms"`
	MaxSpeed            float64    `yaml:"max_speed"`
	MaxAngularRate      float64    `yaml:"max_angular_rate"`
	Deadband            float64    `yaml:"deadband"`
	StateStdDevs        [3]float64 `yaml:"state_std_devs"`
	NominalBattery      float64    `yaml:"nominal_battery"`
	PathPlannerSettings string     `yaml:"pathplanner_settings"`
	TranslationPID      PIDConfig  `yaml:"translation_pid"`
	RotationPID         PIDConfig  `yaml:"rotation_pid"`
}

type VisionConfig struct {
	Endpoints            []string `yaml:"endpoints"`
	Topic                string   `yaml:"topic"`
	MaxSingleTagDistance float64  `yaml:"max_single_tag_distance"`
	MaxPoseZ             float64  `yaml:"max_pose_z"`
	BufferSize           int      `yaml:"buffer_size"`
	PollTimeoutMs        int      `yaml:"poll_timeout_ms"`
	MaxMeasurementAgeMs  int      `yaml:"max_measurement_age_ms"`
}

type AlgaeConfig struct {
	AngleMotorID    int                        `yaml:"angle_motor_id"`
	IntakeMotorID   int                        `yaml:"intake_motor_id"`
	MinAngleDeg     float64                    `yaml:"min_angle_deg"`
	MaxAngleDeg     float64                    `yaml:"max_angle_deg"`
	StowAngleDeg    float64                    `yaml:"stow_angle_deg"`
	IntakeAngleDeg  float64                    `yaml:"intake_angle_deg"`
	ScoreAngleDeg   float64                    `yaml:"score_angle_deg"`
	IntakeRPM       float64                    `yaml:"intake_rpm"`
	EjectRPM        float64                    `yaml:"eject_rpm"`
	EjectSeconds    float64                    `yaml:"eject_seconds"`
	AngleFreeSpeed  float64                    `yaml:"angle_free_speed"`
	IntakeFreeSpeed float64                    `yaml:"intake_free_speed"`
	SensorPin       int                        `yaml:"sensor_pin"`
	SensorActiveLow bool                       `yaml:"sensor_active_low"`
	AngleMotor      motor.TalonFXConfiguration `yaml:"angle_motor"`
	IntakeMotor     motor.TalonFXConfiguration `yaml:"intake_motor"`
}

type AutoConfig struct {
	Trajectory string `yaml:"trajectory"`
}

type TelemetryConfig struct {
	Path     string `yaml:"path"`
	PeriodMs int    `yaml:"period_ms"`
}

type StatusConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type ControlsConfig struct {
	SafetyTimeoutMs int     `yaml:"safety_timeout_ms"`
	StickDeadZone   float64 `yaml:"stick_dead_zone"`
	NetInterface    string  `yaml:"net_interface"`
}
