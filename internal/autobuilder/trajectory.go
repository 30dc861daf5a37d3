package autobuilder

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/Speshl/gorrc_frc/internal/geometry"
)

// State is one timed sample of a trajectory. Speeds are field relative.
type State struct {
	Time   time.Duration
	Pose   geometry.Pose2d
	Speeds geometry.ChassisSpeeds
}

// Trajectory is a blue-origin timed path, sorted by time.
type Trajectory struct {
	Name   string
	States []State
}

type trajectoryFile struct {
	Name    string       `json:"name"`
	Samples []sampleFile `json:"samples"`
}

type sampleFile struct {
	T       float64 `json:"t"` // seconds
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"` // radians
	Vx      float64 `json:"vx"`
	Vy      float64 `json:"vy"`
	Omega   float64 `json:"omega"`
}

// LoadTrajectory reads a trajectory exported as JSON samples.
func LoadTrajectory(path string) (Trajectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Trajectory{}, fmt.Errorf("failed reading trajectory: %w", err)
	}

	file := trajectoryFile{}
	err = json.Unmarshal(data, &file)
	if err != nil {
		return Trajectory{}, fmt.Errorf("failed parsing trajectory %s: %w", path, err)
	}
	if len(file.Samples) == 0 {
		return Trajectory{}, fmt.Errorf("trajectory %s has no samples", path)
	}

	states := make([]State, 0, len(file.Samples))
	for _, sample := range file.Samples {
		states = append(states, State{
			Time:   time.Duration(sample.T * float64(time.Second)),
			Pose:   geometry.NewPose2d(sample.X, sample.Y, geometry.NewRotation2d(sample.Heading)),
			Speeds: geometry.ChassisSpeeds{Vx: sample.Vx, Vy: sample.Vy, Omega: sample.Omega},
		})
	}
	sort.SliceStable(states, func(i, j int) bool { return states[i].Time < states[j].Time })

	name := file.Name
	if name == "" {
		name = path
	}
	return Trajectory{Name: name, States: states}, nil
}

func (t Trajectory) TotalTime() time.Duration {
	if len(t.States) == 0 {
		return 0
	}
	return t.States[len(t.States)-1].Time
}

func (t Trajectory) InitialPose() geometry.Pose2d {
	if len(t.States) == 0 {
		return geometry.Pose2d{}
	}
	return t.States[0].Pose
}

// Sample interpolates the state at time at, holding the end states outside the trajectory.
func (t Trajectory) Sample(at time.Duration) State {
	if len(t.States) == 0 {
		return State{}
	}
	if at <= t.States[0].Time {
		return t.States[0]
	}
	last := t.States[len(t.States)-1]
	if at >= last.Time {
		return last
	}

	i := sort.Search(len(t.States), func(i int) bool { return t.States[i].Time >= at })
	prev, next := t.States[i-1], t.States[i]
	span := next.Time - prev.Time
	if span <= 0 {
		return next
	}

	k := float64(at-prev.Time) / float64(span)
	return State{
		Time: at,
		Pose: geometry.Interpolate(prev.Pose, next.Pose, k),
		Speeds: geometry.ChassisSpeeds{
			Vx:    prev.Speeds.Vx + (next.Speeds.Vx-prev.Speeds.Vx)*k,
			Vy:    prev.Speeds.Vy + (next.Speeds.Vy-prev.Speeds.Vy)*k,
			Omega: prev.Speeds.Omega + (next.Speeds.Omega-prev.Speeds.Omega)*k,
		},
	}
}

// Flip mirrors the trajectory onto the red side of the field.
func (t Trajectory) Flip() Trajectory {
	states := make([]State, 0, len(t.States))
	for _, state := range t.States {
		states = append(states, State{
			Time:   state.Time,
			Pose:   geometry.FlipPose(state.Pose),
			Speeds: geometry.FlipSpeeds(state.Speeds),
		})
	}
	return Trajectory{Name: t.Name, States: states}
}
