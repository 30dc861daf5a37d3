// Package api serves the robot status over HTTP for pit displays and the
// simulation dashboard.
package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Speshl/gorrc_frc/internal/driverstation"
	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/Speshl/gorrc_frc/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 5 * time.Second

type StatusProvider interface {
	Status() models.RobotStatus
}

// StationSetter accepts driver station states from the dashboard. Only wired in simulation.
type StationSetter interface {
	Set(state models.DriverStationState)
}

type Server struct {
	app     *fiber.App
	port    int
	status  StatusProvider
	station StationSetter
	logger  log.Logger
}

// NewServer builds the status server. station may be nil.
func NewServer(port int, status StatusProvider, station StationSetter, logger log.Logger) *Server {
	s := &Server{
		port:    port,
		status:  status,
		station: station,
		logger:  logger.WithField("component", "api"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "gorrc_frc",
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})
	s.app.Use(recover.New())

	s.app.Get("/health", s.handleHealth)

	apiGroup := s.app.Group("/api")
	apiGroup.Get("/state", s.handleState)
	if station != nil {
		apiGroup.Put("/ds", s.handleSetStation)
	}
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves until ctx is done, then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	listenErr := make(chan error, 1)
	go func() {
		s.logger.Infof("status api starting on port %d", s.port)
		listenErr <- s.app.Listen(fmt.Sprintf(":%d", s.port))
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("status api stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.app.ShutdownWithContext(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed shutting down status api: %w", err)
	}
	s.logger.Infof("status api stopped")
	return ctx.Err()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

func (s *Server) handleState(c *fiber.Ctx) error {
	status := s.status.Status()
	if status.UpdatedAt.IsZero() {
		return fiber.NewError(fiber.StatusServiceUnavailable, "robot loop has not run yet")
	}
	return c.JSON(status)
}

func (s *Server) handleSetStation(c *fiber.Ctx) error {
	state := models.DriverStationState{}
	err := c.BodyParser(&state)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid driver station state: %s", err.Error()))
	}

	mode, ok := driverstation.ParseMode(state.Mode)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown mode %q", state.Mode))
	}
	state.Mode = string(mode)

	state.Alliance = strings.ToLower(strings.TrimSpace(state.Alliance))
	if state.Alliance != "" {
		if _, ok := driverstation.ParseAlliance(state.Alliance); !ok {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown alliance %q", state.Alliance))
		}
	}

	s.logger.Infof("driver station set: enabled=%t mode=%s alliance=%s", state.Enabled, state.Mode, state.Alliance)
	s.station.Set(state)
	return c.JSON(state)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
