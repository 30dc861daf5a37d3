// Package scheduler runs commands against subsystems from the robot loop.
package scheduler

import (
	"strings"
	"time"
)

// Subsystem is a mechanism owned by at most one command at a time.
type Subsystem interface {
	Periodic()
}

type Command interface {
	Name() string
	Initialize()
	Execute()
	IsFinished() bool
	End(interrupted bool)
	Requirements() []Subsystem
}

// FunctionalCommand builds a command out of optional callbacks.
type FunctionalCommand struct {
	name         string
	onInit       func()
	onExecute    func()
	onEnd        func(interrupted bool)
	isFinished   func() bool
	requirements []Subsystem
}

var _ Command = (*FunctionalCommand)(nil)

func NewFunctionalCommand(name string, onInit, onExecute func(), onEnd func(bool), isFinished func() bool, requirements ...Subsystem) *FunctionalCommand {
	return &FunctionalCommand{
		name:         name,
		onInit:       onInit,
		onExecute:    onExecute,
		onEnd:        onEnd,
		isFinished:   isFinished,
		requirements: requirements,
	}
}

func (c *FunctionalCommand) Name() string { return c.name }

func (c *FunctionalCommand) Initialize() {
	if c.onInit != nil {
		c.onInit()
	}
}

func (c *FunctionalCommand) Execute() {
	if c.onExecute != nil {
		c.onExecute()
	}
}

func (c *FunctionalCommand) IsFinished() bool {
	if c.isFinished == nil {
		return false
	}
	return c.isFinished()
}

func (c *FunctionalCommand) End(interrupted bool) {
	if c.onEnd != nil {
		c.onEnd(interrupted)
	}
}

func (c *FunctionalCommand) Requirements() []Subsystem { return c.requirements }

func finished() bool { return true }

// RunOnce runs action when scheduled and finishes immediately.
func RunOnce(name string, action func(), requirements ...Subsystem) Command {
	return NewFunctionalCommand(name, action, nil, nil, finished, requirements...)
}

// Run runs action every loop until interrupted.
func Run(name string, action func(), requirements ...Subsystem) Command {
	return NewFunctionalCommand(name, nil, action, nil, nil, requirements...)
}

// RunEnd runs run every loop and end once when interrupted.
func RunEnd(name string, run, end func(), requirements ...Subsystem) Command {
	return NewFunctionalCommand(name, nil, run, func(bool) { end() }, nil, requirements...)
}

// StartEnd runs start once and end once when interrupted.
func StartEnd(name string, start, end func(), requirements ...Subsystem) Command {
	return NewFunctionalCommand(name, start, nil, func(bool) { end() }, nil, requirements...)
}

// WaitUntil finishes once cond holds.
func WaitUntil(name string, cond func() bool) Command {
	return NewFunctionalCommand(name, nil, nil, nil, cond)
}

type timeoutCommand struct {
	Command
	timeout time.Duration
	started time.Time
	now     func() time.Time
}

// WithTimeout ends cmd after timeout if it has not finished on its own.
func WithTimeout(cmd Command, timeout time.Duration) Command {
	return &timeoutCommand{Command: cmd, timeout: timeout, now: time.Now}
}

func (c *timeoutCommand) Name() string {
	return c.Command.Name() + ".withTimeout(" + c.timeout.String() + ")"
}

func (c *timeoutCommand) Initialize() {
	c.started = c.now()
	c.Command.Initialize()
}

func (c *timeoutCommand) IsFinished() bool {
	return c.Command.IsFinished() || c.now().Sub(c.started) >= c.timeout
}

type untilCommand struct {
	Command
	cond func() bool
}

// Until ends cmd as soon as cond holds.
func Until(cmd Command, cond func() bool) Command {
	return &untilCommand{Command: cmd, cond: cond}
}

func (c *untilCommand) Name() string {
	return c.Command.Name() + ".until"
}

func (c *untilCommand) IsFinished() bool {
	return c.cond() || c.Command.IsFinished()
}

type sequenceCommand struct {
	cmds         []Command
	index        int
	requirements []Subsystem
}

// Sequence runs cmds one after another. It requires everything its members require.
func Sequence(cmds ...Command) Command {
	seen := make(map[Subsystem]bool)
	requirements := make([]Subsystem, 0)
	for _, cmd := range cmds {
		for _, req := range cmd.Requirements() {
			if !seen[req] {
				seen[req] = true
				requirements = append(requirements, req)
			}
		}
	}
	return &sequenceCommand{cmds: cmds, index: -1, requirements: requirements}
}

func (c *sequenceCommand) Name() string {
	names := make([]string, 0, len(c.cmds))
	for _, cmd := range c.cmds {
		names = append(names, cmd.Name())
	}
	return "sequence(" + strings.Join(names, ", ") + ")"
}

func (c *sequenceCommand) Initialize() {
	c.index = 0
	if len(c.cmds) > 0 {
		c.cmds[0].Initialize()
	}
}

func (c *sequenceCommand) Execute() {
	if c.index < 0 || c.index >= len(c.cmds) {
		return
	}

	current := c.cmds[c.index]
	current.Execute()
	if current.IsFinished() {
		current.End(false)
		c.index++
		if c.index < len(c.cmds) {
			c.cmds[c.index].Initialize()
		}
	}
}

func (c *sequenceCommand) IsFinished() bool {
	return c.index >= len(c.cmds)
}

func (c *sequenceCommand) End(interrupted bool) {
	if interrupted && c.index >= 0 && c.index < len(c.cmds) {
		c.cmds[c.index].End(true)
	}
	c.index = -1
}

func (c *sequenceCommand) Requirements() []Subsystem { return c.requirements }
