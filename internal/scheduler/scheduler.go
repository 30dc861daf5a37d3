package scheduler

import (
	"fmt"

	"github.com/Speshl/gorrc_frc/internal/log"
)

// Scheduler owns the set of running commands. It is driven by the robot loop
// and is not safe for concurrent use; schedule and cancel calls made while
// Run is executing commands are applied once the pass completes.
type Scheduler struct {
	subsystems   []Subsystem
	defaults     map[Subsystem]Command
	scheduled    []Command
	requirements map[Subsystem]Command

	inRunLoop  bool
	toSchedule []Command
	toCancel   []Command

	logger log.Logger
}

func NewScheduler(logger log.Logger) *Scheduler {
	return &Scheduler{
		defaults:     make(map[Subsystem]Command),
		requirements: make(map[Subsystem]Command),
		logger:       logger.WithField("component", "scheduler"),
	}
}

func (s *Scheduler) RegisterSubsystem(subsystems ...Subsystem) {
	s.subsystems = append(s.subsystems, subsystems...)
}

// SetDefaultCommand sets the command run whenever nothing else requires subsystem.
func (s *Scheduler) SetDefaultCommand(subsystem Subsystem, cmd Command) error {
	for _, req := range cmd.Requirements() {
		if req == subsystem {
			s.defaults[subsystem] = cmd
			return nil
		}
	}
	return fmt.Errorf("default command %s must require its subsystem", cmd.Name())
}

// Schedule starts cmd, interrupting any command holding one of its requirements.
func (s *Scheduler) Schedule(cmd Command) {
	if cmd == nil {
		return
	}
	if s.inRunLoop {
		s.toSchedule = append(s.toSchedule, cmd)
		return
	}
	if s.IsScheduled(cmd) {
		return
	}

	for _, req := range cmd.Requirements() {
		if holder, ok := s.requirements[req]; ok {
			s.logger.Debugf("%s interrupted by %s", holder.Name(), cmd.Name())
			s.cancel(holder)
		}
	}

	cmd.Initialize()
	s.scheduled = append(s.scheduled, cmd)
	for _, req := range cmd.Requirements() {
		s.requirements[req] = cmd
	}
	s.logger.Debugf("scheduled %s", cmd.Name())
}

func (s *Scheduler) Cancel(cmd Command) {
	if s.inRunLoop {
		s.toCancel = append(s.toCancel, cmd)
		return
	}
	s.cancel(cmd)
}

func (s *Scheduler) CancelAll() {
	for _, cmd := range append([]Command(nil), s.scheduled...) {
		s.Cancel(cmd)
	}
}

func (s *Scheduler) IsScheduled(cmd Command) bool {
	for _, scheduled := range s.scheduled {
		if scheduled == cmd {
			return true
		}
	}
	return false
}

// Requiring returns the command currently holding subsystem, if any.
func (s *Scheduler) Requiring(subsystem Subsystem) (Command, bool) {
	cmd, ok := s.requirements[subsystem]
	return cmd, ok
}

// Run performs one scheduler pass: subsystem periodics, one step of every
// scheduled command, then default commands for idle subsystems.
func (s *Scheduler) Run() {
	for _, subsystem := range s.subsystems {
		subsystem.Periodic()
	}

	s.inRunLoop = true
	for _, cmd := range append([]Command(nil), s.scheduled...) {
		cmd.Execute()
		if cmd.IsFinished() {
			cmd.End(false)
			s.remove(cmd)
			s.logger.Debugf("finished %s", cmd.Name())
		}
	}
	s.inRunLoop = false

	toSchedule, toCancel := s.toSchedule, s.toCancel
	s.toSchedule, s.toCancel = nil, nil
	for _, cmd := range toSchedule {
		s.Schedule(cmd)
	}
	for _, cmd := range toCancel {
		s.Cancel(cmd)
	}

	for _, subsystem := range s.subsystems {
		if _, busy := s.requirements[subsystem]; busy {
			continue
		}
		if def, ok := s.defaults[subsystem]; ok {
			s.Schedule(def)
		}
	}
}

func (s *Scheduler) cancel(cmd Command) {
	if !s.IsScheduled(cmd) {
		return
	}
	cmd.End(true)
	s.remove(cmd)
	s.logger.Debugf("canceled %s", cmd.Name())
}

func (s *Scheduler) remove(cmd Command) {
	for i, scheduled := range s.scheduled {
		if scheduled == cmd {
			s.scheduled = append(s.scheduled[:i], s.scheduled[i+1:]...)
			break
		}
	}
	for _, req := range cmd.Requirements() {
		if s.requirements[req] == cmd {
			delete(s.requirements, req)
		}
	}
}
