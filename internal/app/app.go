package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Speshl/gorrc_frc/internal/api"
	"github.com/Speshl/gorrc_frc/internal/command"
	"github.com/Speshl/gorrc_frc/internal/command/pca9685"
	pipwm "github.com/Speshl/gorrc_frc/internal/command/pi_pwm"
	"github.com/Speshl/gorrc_frc/internal/config"
	"github.com/Speshl/gorrc_frc/internal/driverstation"
	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/Speshl/gorrc_frc/internal/models"
	"github.com/Speshl/gorrc_frc/internal/robot"
	"golang.org/x/sync/errgroup"
)

const (
	healthPeriod      = 30 * time.Second
	seatChannelBuffer = 100
)

// SignalClient is the socket.io connection to the field server.
type SignalClient interface {
	OnEvent(event string, f interface{})
	Connect() error
	Emit(event string, args ...interface{})
	Close() error
}

type App struct {
	ctx       context.Context
	ctxCancel context.CancelFunc

	cfg    config.Config
	client SignalClient

	station   *driverstation.Station
	simSource *driverstation.SimSource
	robot     *robot.Robot
	status    *api.Server

	seats     []models.Seat
	connLock  sync.Mutex
	userConns []*Connection

	infoLock  sync.Mutex
	robotInfo models.Robot
	eventInfo models.Event

	logger log.Logger
}

// NewApp wires the robot to its operators. client may be nil when no field server is used.
func NewApp(cfg config.Config, client SignalClient, logger log.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		ctx:       ctx,
		ctxCancel: cancel,
		cfg:       cfg,
		client:    client,
		station:   driverstation.NewStation(time.Duration(cfg.DriverStationCfg.TimeoutMs) * time.Millisecond),
		logger:    logger.WithField("component", "app"),
	}

	seatCount := min(cfg.ServerCfg.SeatCount, robot.MaxSeats)
	a.seats = make([]models.Seat, seatCount)
	for i := range a.seats {
		a.seats[i] = models.Seat{
			Index:          i,
			CommandChannel: make(chan models.ControlState, seatChannelBuffer),
			HudChannel:     make(chan models.Hud, seatChannelBuffer),
		}
	}
	a.userConns = make([]*Connection, seatCount)

	outputDriver, err := buildOutputDriver(cfg.PWMCfg, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	a.robot, err = robot.NewRobot(cfg, a.station, outputDriver, a.seats, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed creating robot: %w", err)
	}

	var stationSetter api.StationSetter
	if cfg.RobotCfg.Sim {
		a.simSource = driverstation.NewSimSource(a.station, driverstation.DefaultSimPeriod)
		stationSetter = a.simSource
	}
	if cfg.StatusCfg.Enabled {
		a.status = api.NewServer(cfg.StatusCfg.Port, a.robot, stationSetter, logger)
	}
	return a, nil
}

func buildOutputDriver(cfg config.PWMConfig, logger log.Logger) (command.OutputDriver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Driver {
	case "pca9685":
		return pca9685.NewCommandDriver(cfg, logger), nil
	case "pi_pwm":
		return pipwm.NewCommandDriver(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported pwm driver %q", cfg.Driver)
	}
}

func (a *App) RegisterHandlers() error {
	if a.client == nil {
		a.logger.Infof("no field server configured")
		return nil
	}

	a.logger.Infof("registering handlers")
	a.client.OnEvent("offer", a.onOffer)
	a.client.OnEvent("candidate", a.onICECandidate)
	a.client.OnEvent("register_success", a.onRegisterSuccess)
	a.client.OnEvent("ds_state", a.onDriverStation)

	a.logger.Infof("attempting to connect to server...")
	err := a.client.Connect()
	if err != nil {
		return fmt.Errorf("error connecting to server: %w", err)
	}
	a.logger.Infof("connected to server")
	return nil
}

func (a *App) Start(ctx context.Context) error {
	defer a.ctxCancel()

	err := a.robot.Init()
	if err != nil {
		return fmt.Errorf("failed initializing robot: %w", err)
	}

	group, groupCtx := errgroup.WithContext(a.ctx)
	a.logger.Infof("starting...")

	defer func() {
		a.logger.Infof("stopping...")
		a.disconnectAll()
		if a.client != nil {
			err := a.client.Close()
			if err != nil {
				a.logger.Warnf("failed closing server connection: %s", err.Error())
			}
		}
	}()

	group.Go(func() error {
		signalChannel := make(chan os.Signal, 1)
		signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(signalChannel)
		select {
		case sig := <-signalChannel:
			a.logger.Infof("received signal: %s", sig)
			return context.Canceled
		case <-ctx.Done():
			return ctx.Err()
		case <-groupCtx.Done():
			return groupCtx.Err()
		}
	})

	group.Go(func() error {
		return a.robot.Start(groupCtx)
	})

	if a.simSource != nil {
		group.Go(func() error {
			return a.simSource.Start(groupCtx)
		})
	}

	if a.status != nil {
		group.Go(func() error {
			return a.status.Start(groupCtx)
		})
	}

	if a.client != nil {
		group.Go(func() error {
			return a.healthLoop(groupCtx)
		})
	}

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("robot stopping due to error: %w", err)
	}
	a.logger.Infof("shutting down")
	return nil
}

// healthLoop registers with the field server then reports healthy until ctx is done.
func (a *App) healthLoop(ctx context.Context) error {
	encodedMsg, err := encode(models.ConnectReq{
		Key:       a.cfg.ServerCfg.Key,
		Password:  a.cfg.ServerCfg.Password,
		SeatCount: len(a.seats),
	})
	if err != nil {
		return fmt.Errorf("failed encoding connect request: %w", err)
	}
	a.client.Emit("robot_connect", encodedMsg)

	healthTicker := time.NewTicker(healthPeriod)
	defer healthTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.logger.Infof("health checker stopped")
			return ctx.Err()
		case <-healthTicker.C:
			a.logger.Debugf("healthcheck: healthy")
			a.client.Emit("robot_healthy", "")
		}
	}
}
