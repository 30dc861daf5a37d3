package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Speshl/gorrc_frc/internal/app"
	"github.com/Speshl/gorrc_frc/internal/config"
	"github.com/Speshl/gorrc_frc/internal/log"
	socketio "github.com/googollee/go-socket.io"
	"github.com/urfave/cli"
)

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "gorrc_frc"
	cliApp.Usage = "drive an FRC style robot over WebRTC"
	cliApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "path to the robot YAML config",
			EnvVar: config.AppEnvBase + "CONFIG",
		},
		cli.BoolFlag{
			Name:  "sim",
			Usage: "run against simulated hardware and the built in driver station",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "override the configured log level",
		},
	}
	cliApp.Action = run

	err := cliApp.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "robot shutdown with error: %s\n", err.Error())
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.GetConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.Bool("sim") {
		cfg.RobotCfg.Sim = true
	}
	if c.String("log-level") != "" {
		cfg.LoggingCfg.Level = c.String("log-level")
	}

	logger, err := log.NewLogrusLogger(log.Options{
		Level:      cfg.LoggingCfg.Level,
		File:       cfg.LoggingCfg.File,
		MaxSizeMB:  cfg.LoggingCfg.MaxSizeMB,
		MaxBackups: cfg.LoggingCfg.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("failed creating logger: %w", err)
	}

	var client app.SignalClient
	if cfg.ServerCfg.Enabled {
		socketURI := fmt.Sprintf("http://%s", cfg.ServerCfg.Server)
		socketClient, err := socketio.NewClient(socketURI, nil)
		if err != nil {
			return fmt.Errorf("error creating client: %w", err)
		}
		client = socketClient
	}

	robotApp, err := app.NewApp(cfg, client, logger)
	if err != nil {
		return err
	}

	err = robotApp.RegisterHandlers()
	if err != nil {
		return err
	}

	err = robotApp.Start(context.Background())
	if err != nil {
		return err
	}
	logger.Infof("robot shutdown successfully")
	return nil
}
