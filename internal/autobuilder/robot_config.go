package autobuilder

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Speshl/gorrc_frc/internal/geometry"
)

// RobotConfig is the physical description of the robot used by path following.
type RobotConfig struct {
	MassKG            float64
	MOI               float64 // kg*m^2
	WheelRadius       float64 // m
	DriveGearing      float64
	MaxDriveVelocity  float64 // m/s
	WheelCOF          float64
	DriveMotorType    string
	DriveCurrentLimit float64 // A
	NominalVoltage    float64
	IsHolonomic       bool
	ModuleLocations   []geometry.Translation2d // FL, FR, BL, BR
}

// guiSettings mirrors the fields of the path planner GUI settings.json we use.
type guiSettings struct {
	HolonomicMode     bool    `json:"holonomicMode"`
	RobotMass         float64 `json:"robotMass"`
	RobotMOI          float64 `json:"robotMOI"`
	DriveWheelRadius  float64 `json:"driveWheelRadius"`
	DriveGearing      float64 `json:"driveGearing"`
	MaxDriveSpeed     float64 `json:"maxDriveSpeed"`
	DriveMotorType    string  `json:"driveMotorType"`
	DriveCurrentLimit float64 `json:"driveCurrentLimit"`
	WheelCOF          float64 `json:"wheelCOF"`
	NominalVoltage    float64 `json:"defaultNominalVoltage"`
	FLModuleX         float64 `json:"flModuleX"`
	FLModuleY         float64 `json:"flModuleY"`
	FRModuleX         float64 `json:"frModuleX"`
	FRModuleY         float64 `json:"frModuleY"`
	BLModuleX         float64 `json:"blModuleX"`
	BLModuleY         float64 `json:"blModuleY"`
	BRModuleX         float64 `json:"brModuleX"`
	BRModuleY         float64 `json:"brModuleY"`
}

// RobotConfigFromGUISettings loads the robot config saved by the path planner GUI.
func RobotConfigFromGUISettings(path string) (RobotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RobotConfig{}, fmt.Errorf("failed reading gui settings: %w", err)
	}

	settings := guiSettings{}
	err = json.Unmarshal(data, &settings)
	if err != nil {
		return RobotConfig{}, fmt.Errorf("failed parsing gui settings %s: %w", path, err)
	}

	cfg := RobotConfig{
		MassKG:            settings.RobotMass,
		MOI:               settings.RobotMOI,
		WheelRadius:       settings.DriveWheelRadius,
		DriveGearing:      settings.DriveGearing,
		MaxDriveVelocity:  settings.MaxDriveSpeed,
		WheelCOF:          settings.WheelCOF,
		DriveMotorType:    settings.DriveMotorType,
		DriveCurrentLimit: settings.DriveCurrentLimit,
		NominalVoltage:    settings.NominalVoltage,
		IsHolonomic:       settings.HolonomicMode,
		ModuleLocations: []geometry.Translation2d{
			{X: settings.FLModuleX, Y: settings.FLModuleY},
			{X: settings.FRModuleX, Y: settings.FRModuleY},
			{X: settings.BLModuleX, Y: settings.BLModuleY},
			{X: settings.BRModuleX, Y: settings.BRModuleY},
		},
	}

	err = cfg.Validate()
	if err != nil {
		return RobotConfig{}, fmt.Errorf("gui settings %s: %w", path, err)
	}
	return cfg, nil
}

func (c RobotConfig) Validate() error {
	if c.MassKG <= 0 {
		return fmt.Errorf("robot mass must be positive, got %.2f: %w", c.MassKG, ErrInvalidConfig)
	}
	if c.MaxDriveVelocity <= 0 {
		return fmt.Errorf("max drive speed must be positive, got %.2f: %w", c.MaxDriveVelocity, ErrInvalidConfig)
	}
	if !c.IsHolonomic {
		return fmt.Errorf("swerve requires holonomic mode: %w", ErrInvalidConfig)
	}
	return nil
}
