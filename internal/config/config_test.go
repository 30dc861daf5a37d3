package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "robot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestGetConfigDefaults(t *testing.T) {
	cfg, err := GetConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultRobotName, cfg.RobotCfg.Name)
	assert.Equal(t, 180.0, cfg.DrivetrainCfg.RedPerspectiveDeg)
	assert.Equal(t, 0.0, cfg.DrivetrainCfg.BluePerspectiveDeg)
	assert.Equal(t, 5, cfg.DrivetrainCfg.SimLoopPeriodMs)
	assert.Equal(t, PIDConfig{P: 5}, cfg.DrivetrainCfg.TranslationPID)
	assert.Equal(t, PIDConfig{P: 5}, cfg.DrivetrainCfg.RotationPID)
	assert.Equal(t, 500, cfg.DriverStationCfg.TimeoutMs)
	assert.Len(t, cfg.PWMCfg.Channels, 2)
	assert.Equal(t, byte(0x40), cfg.PWMCfg.Address)
}

func TestGetConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
robot:
  name: practice-bot
  team: 9999
  sim: true
algae:
  min_angle_deg: -10
  max_angle_deg: 95
  angle_motor:
    motion_magic:
      cruise_velocity: 2
      acceleration: 6
vision:
  endpoints: ["tcp://10.0.0.11:5556", "tcp://10.0.0.12:5556"]
drivetrain:
  state_std_devs: [0.2, 0.2, 0.3]
`)

	cfg, err := GetConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "practice-bot", cfg.RobotCfg.Name)
	assert.Equal(t, 9999, cfg.RobotCfg.Team)
	assert.True(t, cfg.RobotCfg.Sim)
	assert.Equal(t, -10.0, cfg.AlgaeCfg.MinAngleDeg)
	assert.Equal(t, 95.0, cfg.AlgaeCfg.MaxAngleDeg)
	assert.Equal(t, 2.0, cfg.AlgaeCfg.AngleMotor.MotionMagic.CruiseVelocity)
	assert.Equal(t, [3]float64{0.2, 0.2, 0.3}, cfg.DrivetrainCfg.StateStdDevs)
	assert.Len(t, cfg.VisionCfg.Endpoints, 2)

	// untouched sections keep their defaults
	assert.Equal(t, DefaultAlgaeAngleGearRatio, cfg.AlgaeCfg.AngleMotor.Feedback.SensorToMechanismRatio)
	assert.Equal(t, DefaultStatusPort, cfg.StatusCfg.Port)
}

func TestGetConfigMissingFile(t *testing.T) {
	_, err := GetConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetConfigBadYaml(t *testing.T) {
	path := writeConfig(t, "robot: [not a map")
	_, err := GetConfig(path)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "robot:\n  name: from-file\n")
	t.Setenv("FRC_ROBOTNAME", "from-env")
	t.Setenv("FRC_SIM", "true")
	t.Setenv("FRC_VISIONENDPOINTS", "tcp://a:1,tcp://b:2")
	t.Setenv("FRC_PWM2_NAME", "spare")
	t.Setenv("FRC_PWM2_CHANNEL", "7")

	cfg, err := GetConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.RobotCfg.Name)
	assert.True(t, cfg.RobotCfg.Sim)
	assert.Equal(t, []string{"tcp://a:1", "tcp://b:2"}, cfg.VisionCfg.Endpoints)
	require.Len(t, cfg.PWMCfg.Channels, 3)
	assert.Equal(t, "spare", cfg.PWMCfg.Channels[2].Name)
	assert.Equal(t, 7, cfg.PWMCfg.Channels[2].Channel)
}

func TestBadEnvValueKeepsDefault(t *testing.T) {
	t.Setenv("FRC_TEAM", "not-a-number")
	assert.Equal(t, 1234, GetIntEnv("TEAM", 1234))

	t.Setenv("FRC_MAXSPEED", "fast")
	assert.Equal(t, 3.0, GetFloatEnv("MAXSPEED", 3.0))

	t.Setenv("FRC_SIM", "maybe")
	assert.True(t, GetBoolEnv("SIM", true))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "missing robot name",
			mutate:  func(c *Config) { c.RobotCfg.Name = "" },
			wantErr: ErrMissingField,
		},
		{
			name:    "missing server",
			mutate:  func(c *Config) { c.ServerCfg.Server = "" },
			wantErr: ErrMissingField,
		},
		{
			name:   "inverted algae range",
			mutate: func(c *Config) { c.AlgaeCfg.MinAngleDeg = 120 },
		},
		{
			name:   "stow angle below range",
			mutate: func(c *Config) { c.AlgaeCfg.StowAngleDeg = -5 },
		},
		{
			name:   "intake angle above range",
			mutate: func(c *Config) { c.AlgaeCfg.IntakeAngleDeg = 111 },
		},
		{
			name:   "score angle above range",
			mutate: func(c *Config) { c.AlgaeCfg.ScoreAngleDeg = 180 },
		},
		{
			name:   "zero sim period",
			mutate: func(c *Config) { c.DrivetrainCfg.SimLoopPeriodMs = 0 },
		},
		{
			name: "unknown pwm driver",
			mutate: func(c *Config) {
				c.PWMCfg.Enabled = true
				c.PWMCfg.Driver = "servoblaster"
			},
		},
		{
			name:   "bad motor config",
			mutate: func(c *Config) { c.AlgaeCfg.IntakeMotor.MotionMagic.Acceleration = -1 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	assert.NoError(t, DefaultConfig().Validate())

	// setpoints on the bounds are accepted
	cfg := DefaultConfig()
	cfg.AlgaeCfg.StowAngleDeg = cfg.AlgaeCfg.MinAngleDeg
	cfg.AlgaeCfg.IntakeAngleDeg = cfg.AlgaeCfg.MaxAngleDeg
	assert.NoError(t, cfg.Validate())
}
