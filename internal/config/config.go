package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Speshl/gorrc_frc/internal/motor"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// GetConfig builds the robot config from defaults, then the YAML file at path
// (skipped when path is empty), then FRC_ environment overrides.
func GetConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		err := loadFromFile(&cfg, path)
		if err != nil {
			return Config{}, fmt.Errorf("failed loading config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	err := cfg.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func DefaultConfig() Config {
	return Config{
		RobotCfg: RobotConfig{
			Name:         DefaultRobotName,
			Team:         DefaultTeam,
			Sim:          DefaultSim,
			LoopPeriodMs: DefaultLoopPeriodMs,
		},
		ServerCfg: ServerConfig{
			Enabled:   DefaultServerEnabled,
			Server:    DefaultServer,
			Key:       DefaultKey,
			Password:  DefaultPassword,
			SeatCount: DefaultSeatCount,
		},
		LoggingCfg: LoggingConfig{
			Level:      DefaultLogLevel,
			File:       DefaultLogFile,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
		},
		PWMCfg: PWMConfig{
			Enabled:   DefaultPWMEnabled,
			Driver:    DefaultPWMDriver,
			Address:   DefaultAddress,
			I2CDevice: DefaultI2CDevice,
			Channels: []ChannelConfig{
				{Name: "algae_angle", Channel: 0, MaxPulse: DefaultMaxPulse, MinPulse: DefaultMinPulse},
				{Name: "algae_intake", Channel: 1, MaxPulse: DefaultMaxPulse, MinPulse: DefaultMinPulse},
			},
		},
		DriverStationCfg: DriverStationConfig{
			TimeoutMs: DefaultDSTimeoutMs,
		},
		DrivetrainCfg: DrivetrainConfig{
			BluePerspectiveDeg:  DefaultBluePerspectiveDeg,
			RedPerspectiveDeg:   DefaultRedPerspectiveDeg,
			SimLoopPeriodMs:     DefaultSimLoopPeriodMs,
			MaxSpeed:            DefaultMaxSpeed,
			MaxAngularRate:      DefaultMaxAngularRate,
			Deadband:            DefaultDriveDeadband,
			StateStdDevs:        [3]float64{DefaultStateStdDev, DefaultStateStdDev, DefaultStateStdDev},
			NominalBattery:      DefaultNominalBattery,
			PathPlannerSettings: DefaultPathPlannerSettings,
			TranslationPID:      PIDConfig{P: DefaultTranslationP},
			RotationPID:         PIDConfig{P: DefaultRotationP},
		},
		VisionCfg: VisionConfig{
			Topic:                DefaultVisionTopic,
			MaxSingleTagDistance: DefaultMaxSingleTagDistance,
			MaxPoseZ:             DefaultMaxPoseZ,
			BufferSize:           DefaultVisionBufferSize,
			PollTimeoutMs:        DefaultVisionPollTimeoutMs,
			MaxMeasurementAgeMs:  DefaultVisionMaxMeasureAgeMs,
		},
		AlgaeCfg: AlgaeConfig{
			AngleMotorID:    DefaultAlgaeAngleMotorID,
			IntakeMotorID:   DefaultAlgaeIntakeMotorID,
			MinAngleDeg:     DefaultAlgaeMinAngleDeg,
			MaxAngleDeg:     DefaultAlgaeMaxAngleDeg,
			StowAngleDeg:    DefaultAlgaeStowAngleDeg,
			IntakeAngleDeg:  DefaultAlgaeIntakeAngleDeg,
			ScoreAngleDeg:   DefaultAlgaeScoreAngleDeg,
			IntakeRPM:       DefaultAlgaeIntakeRPM,
			EjectRPM:        DefaultAlgaeEjectRPM,
			EjectSeconds:    DefaultAlgaeEjectSeconds,
			AngleFreeSpeed:  DefaultAlgaeAngleFreeSpeed,
			IntakeFreeSpeed: DefaultAlgaeIntakeFree,
			SensorPin:       DefaultAlgaeSensorPin,
			SensorActiveLow: true,
			AngleMotor: motor.TalonFXConfiguration{
				Slot0:         motor.Slot0Configs{KP: 40, KD: 0.5, KS: 0.25, KV: 5.4, KG: 0.3},
				MotionMagic:   motor.MotionMagicConfigs{CruiseVelocity: 1.5, Acceleration: 4},
				Feedback:      motor.FeedbackConfigs{SensorToMechanismRatio: DefaultAlgaeAngleGearRatio},
				CurrentLimits: motor.CurrentLimitsConfigs{StatorCurrentLimit: 40, StatorCurrentLimitEnable: true},
				MotorOutput:   motor.MotorOutputConfigs{BrakeMode: true},
			},
			IntakeMotor: motor.TalonFXConfiguration{
				Slot0:         motor.Slot0Configs{KP: 0.1, KV: 0.12},
				MotionMagic:   motor.MotionMagicConfigs{Acceleration: 400},
				Feedback:      motor.FeedbackConfigs{SensorToMechanismRatio: 1},
				CurrentLimits: motor.CurrentLimitsConfigs{StatorCurrentLimit: 30, StatorCurrentLimitEnable: true},
			},
		},
		AutoCfg: AutoConfig{
			Trajectory: DefaultAutoTrajectory,
		},
		TelemetryCfg: TelemetryConfig{
			Path:     DefaultTelemetryPath,
			PeriodMs: DefaultTelemetryPeriodMs,
		},
		StatusCfg: StatusConfig{
			Enabled: true,
			Port:    DefaultStatusPort,
		},
		ControlsCfg: ControlsConfig{
			SafetyTimeoutMs: DefaultSafetyTimeoutMs,
			StickDeadZone:   DefaultStickDeadZone,
			NetInterface:    DefaultNetInterface,
		},
	}
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	cfg.RobotCfg.Name = GetStringEnv("ROBOTNAME", cfg.RobotCfg.Name)
	cfg.RobotCfg.Team = GetIntEnv("TEAM", cfg.RobotCfg.Team)
	cfg.RobotCfg.Sim = GetBoolEnv("SIM", cfg.RobotCfg.Sim)
	cfg.RobotCfg.LoopPeriodMs = GetIntEnv("LOOPPERIODMS", cfg.RobotCfg.LoopPeriodMs)

	cfg.ServerCfg.Enabled = GetBoolEnv("SERVERENABLED", cfg.ServerCfg.Enabled)
	cfg.ServerCfg.Server = GetStringEnv("SERVER", cfg.ServerCfg.Server)
	cfg.ServerCfg.Key = GetStringEnv("ROBOTKEY", cfg.ServerCfg.Key)
	cfg.ServerCfg.Password = GetStringEnv("ROBOTPASSWORD", cfg.ServerCfg.Password)
	cfg.ServerCfg.SeatCount = GetIntEnv("SEATCOUNT", cfg.ServerCfg.SeatCount)

	cfg.LoggingCfg.Level = strings.ToLower(GetStringEnv("LOGLEVEL", cfg.LoggingCfg.Level))
	cfg.LoggingCfg.File = GetStringEnv("LOGFILE", cfg.LoggingCfg.File)

	cfg.PWMCfg.Enabled = GetBoolEnv("PWMENABLED", cfg.PWMCfg.Enabled)
	cfg.PWMCfg.Driver = strings.ToLower(GetStringEnv("PWMDRIVER", cfg.PWMCfg.Driver))
	cfg.PWMCfg.I2CDevice = GetStringEnv("I2CDEVICE", cfg.PWMCfg.I2CDevice)
	for i := 0; i < MaxSupportedChannels; i++ {
		envPrefix := fmt.Sprintf("PWM%d_", i)
		name := GetStringEnv(envPrefix+"NAME", "")
		if name == "" {
			continue
		}

		chCfg := ChannelConfig{
			Name:     name,
			Channel:  GetIntEnv(envPrefix+"CHANNEL", i),
			MaxPulse: GetFloatEnv(envPrefix+"MAXPULSE", DefaultMaxPulse),
			MinPulse: GetFloatEnv(envPrefix+"MINPULSE", DefaultMinPulse),
			Inverted: GetBoolEnv(envPrefix+"INVERTED", false),
			Offset:   GetIntEnv(envPrefix+"MIDOFFSET", 0),
		}
		if i < len(cfg.PWMCfg.Channels) {
			cfg.PWMCfg.Channels[i] = chCfg
		} else {
			cfg.PWMCfg.Channels = append(cfg.PWMCfg.Channels, chCfg)
		}
	}

	cfg.DriverStationCfg.TimeoutMs = GetIntEnv("DSTIMEOUTMS", cfg.DriverStationCfg.TimeoutMs)

	cfg.DrivetrainCfg.SimLoopPeriodMs = GetIntEnv("SIMLOOPPERIODMS", cfg.DrivetrainCfg.SimLoopPeriodMs)
	cfg.DrivetrainCfg.MaxSpeed = GetFloatEnv("MAXSPEED", cfg.DrivetrainCfg.MaxSpeed)
	cfg.DrivetrainCfg.MaxAngularRate = GetFloatEnv("MAXANGULARRATE", cfg.DrivetrainCfg.MaxAngularRate)
	cfg.DrivetrainCfg.PathPlannerSettings = GetStringEnv("PATHPLANNERSETTINGS", cfg.DrivetrainCfg.PathPlannerSettings)

	endpoints := GetStringEnv("VISIONENDPOINTS", "")
	if endpoints != "" {
		cfg.VisionCfg.Endpoints = strings.Split(endpoints, ",")
	}
	cfg.VisionCfg.Topic = GetStringEnv("VISIONTOPIC", cfg.VisionCfg.Topic)

	cfg.AlgaeCfg.MinAngleDeg = GetFloatEnv("ALGAE_MINANGLE", cfg.AlgaeCfg.MinAngleDeg)
	cfg.AlgaeCfg.MaxAngleDeg = GetFloatEnv("ALGAE_MAXANGLE", cfg.AlgaeCfg.MaxAngleDeg)
	cfg.AlgaeCfg.IntakeRPM = GetFloatEnv("ALGAE_INTAKERPM", cfg.AlgaeCfg.IntakeRPM)
	cfg.AlgaeCfg.SensorPin = GetIntEnv("ALGAE_SENSORPIN", cfg.AlgaeCfg.SensorPin)

	cfg.AutoCfg.Trajectory = GetStringEnv("AUTOTRAJECTORY", cfg.AutoCfg.Trajectory)
	cfg.TelemetryCfg.Path = GetStringEnv("TELEMETRYPATH", cfg.TelemetryCfg.Path)
	cfg.StatusCfg.Enabled = GetBoolEnv("STATUSENABLED", cfg.StatusCfg.Enabled)
	cfg.StatusCfg.Port = GetIntEnv("STATUSPORT", cfg.StatusCfg.Port)
	cfg.ControlsCfg.NetInterface = GetStringEnv("NETINTERFACE", cfg.ControlsCfg.NetInterface)
}

// Validate reports the first field that would leave the robot unable to run.
func (c Config) Validate() error {
	if c.RobotCfg.Name == "" {
		return fmt.Errorf("robot.name: %w", ErrMissingField)
	}
	if c.ServerCfg.Enabled && c.ServerCfg.Server == "" {
		return fmt.Errorf("server.server: %w", ErrMissingField)
	}
	if c.RobotCfg.LoopPeriodMs <= 0 {
		return fmt.Errorf("robot.loop_period_ms must be positive, got %d", c.RobotCfg.LoopPeriodMs)
	}
	if c.DrivetrainCfg.SimLoopPeriodMs <= 0 {
		return fmt.Errorf("drivetrain.sim_loop_period_ms must be positive, got %d", c.DrivetrainCfg.SimLoopPeriodMs)
	}
	if c.AlgaeCfg.MinAngleDeg >= c.AlgaeCfg.MaxAngleDeg {
		return fmt.Errorf("algae.min_angle_deg %.1f must be below algae.max_angle_deg %.1f", c.AlgaeCfg.MinAngleDeg, c.AlgaeCfg.MaxAngleDeg)
	}
	setpoints := []struct {
		name  string
		angle float64
	}{
		{"algae.stow_angle_deg", c.AlgaeCfg.StowAngleDeg},
		{"algae.intake_angle_deg", c.AlgaeCfg.IntakeAngleDeg},
		{"algae.score_angle_deg", c.AlgaeCfg.ScoreAngleDeg},
	}
	for _, setpoint := range setpoints {
		if setpoint.angle < c.AlgaeCfg.MinAngleDeg || setpoint.angle > c.AlgaeCfg.MaxAngleDeg {
			return fmt.Errorf("%s %.1f outside [%.1f, %.1f]", setpoint.name, setpoint.angle, c.AlgaeCfg.MinAngleDeg, c.AlgaeCfg.MaxAngleDeg)
		}
	}
	if c.PWMCfg.Enabled && c.PWMCfg.Driver != "pca9685" && c.PWMCfg.Driver != "pi_pwm" {
		return fmt.Errorf("pwm.driver %q not supported", c.PWMCfg.Driver)
	}
	if len(c.PWMCfg.Channels) > MaxSupportedChannels {
		return fmt.Errorf("pwm.channels supports at most %d channels, got %d", MaxSupportedChannels, len(c.PWMCfg.Channels))
	}

	errs := make([]error, 0)
	for _, motorCfg := range []motor.TalonFXConfiguration{c.AlgaeCfg.AngleMotor, c.AlgaeCfg.IntakeMotor} {
		err := motorCfg.Validate()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c RobotConfig) LoopPeriod() time.Duration {
	return time.Duration(c.LoopPeriodMs) * time.Millisecond
}

func (c DrivetrainConfig) SimLoopPeriod() time.Duration {
	return time.Duration(c.SimLoopPeriodMs) * time.Millisecond
}

func GetIntEnv(env string, defaultValue int) int {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}

	value, err := strconv.ParseInt(strings.Trim(envValue, "\r"), 10, 32)
	if err != nil {
		logrus.Warnf("%s not parsed - error: %s", env, err)
		return defaultValue
	}
	return int(value)
}

func GetBoolEnv(env string, defaultValue bool) bool {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}

	value, err := strconv.ParseBool(strings.Trim(envValue, "\r"))
	if err != nil {
		logrus.Warnf("%s not parsed - error: %s", env, err)
		return defaultValue
	}
	return value
}

func GetStringEnv(env string, defaultValue string) string {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	return strings.Trim(envValue, "\r")
}

func GetFloatEnv(env string, defaultValue float64) float64 {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}

	value, err := strconv.ParseFloat(strings.Trim(envValue, "\r"), 64)
	if err != nil {
		logrus.Warnf("%s not parsed - error: %s", env, err)
		return defaultValue
	}
	return value
}
