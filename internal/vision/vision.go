// Package vision collects AprilTag pose estimates from the camera
// coprocessors and decides how much the pose estimator should trust them.
package vision

import (
	"math"
	"sync"
	"time"

	"github.com/Speshl/gorrc_frc/internal/geometry"
	"github.com/Speshl/gorrc_frc/internal/log"
)

const (
	DefaultMaxSingleTagDistance = 4.0  // m
	DefaultMaxPoseZ             = 0.75 // m
	stdDevDistanceDivisor       = 30.0
)

var (
	singleTagStdDevs = [3]float64{4, 4, 8}
	multiTagStdDevs  = [3]float64{0.5, 0.5, 1}
)

// Estimate is one robot pose solved by a camera.
type Estimate struct {
	EstimatedPose      geometry.Pose3d
	Timestamp          time.Time
	TagIDs             []int
	AverageTagDistance float64 // m
	Camera             string
}

// Result is an accepted estimate with the trust to fuse it at.
type Result struct {
	VisionEstimate     Estimate
	StandardDeviations [3]float64
}

// Source hands over the estimates it has collected since the last call.
type Source interface {
	Name() string
	Drain() []Estimate
}

type Options struct {
	MaxSingleTagDistance float64
	MaxPoseZ             float64
}

// Cluster merges every camera source into one batch per robot loop.
type Cluster struct {
	lock    sync.Mutex
	sources []Source
	opts    Options
	logger  log.Logger
}

func NewCluster(opts Options, logger log.Logger, sources ...Source) *Cluster {
	if opts.MaxSingleTagDistance <= 0 {
		opts.MaxSingleTagDistance = DefaultMaxSingleTagDistance
	}
	if opts.MaxPoseZ <= 0 {
		opts.MaxPoseZ = DefaultMaxPoseZ
	}
	return &Cluster{
		sources: sources,
		opts:    opts,
		logger:  logger.WithField("component", "vision"),
	}
}

func (c *Cluster) AddSource(source Source) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.sources = append(c.sources, source)
}

// GetVisionEstimates drains every source and returns the estimates worth fusing.
func (c *Cluster) GetVisionEstimates() []Result {
	c.lock.Lock()
	sources := append([]Source(nil), c.sources...)
	c.lock.Unlock()

	results := make([]Result, 0)
	for _, source := range sources {
		for _, estimate := range source.Drain() {
			reason := c.reject(estimate)
			if reason != "" {
				c.logger.Debugf("rejected estimate from %s: %s", source.Name(), reason)
				continue
			}
			results = append(results, Result{
				VisionEstimate:     estimate,
				StandardDeviations: StandardDeviations(estimate),
			})
		}
	}
	return results
}

func (c *Cluster) reject(estimate Estimate) string {
	pose := estimate.EstimatedPose
	switch {
	case len(estimate.TagIDs) == 0:
		return "no tags"
	case pose.X < 0 || pose.X > geometry.FieldLength || pose.Y < 0 || pose.Y > geometry.FieldWidth:
		return "off the field"
	case math.Abs(pose.Z) > c.opts.MaxPoseZ:
		return "off the ground"
	case len(estimate.TagIDs) == 1 && estimate.AverageTagDistance > c.opts.MaxSingleTagDistance:
		return "single tag too far"
	}
	return ""
}

// StandardDeviations trusts multi-tag solves more than single-tag ones and
// trusts both less as the tags get farther away.
func StandardDeviations(estimate Estimate) [3]float64 {
	base := singleTagStdDevs
	if len(estimate.TagIDs) > 1 {
		base = multiTagStdDevs
	}

	scale := 1 + estimate.AverageTagDistance*estimate.AverageTagDistance/stdDevDistanceDivisor
	return [3]float64{base[0] * scale, base[1] * scale, base[2] * scale}
}

var _ Source = (*Buffer)(nil)

// Buffer is a bounded Source. When full the oldest estimate is dropped.
type Buffer struct {
	lock      sync.Mutex
	name      string
	size      int
	estimates []Estimate
}

func NewBuffer(name string, size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{
		name:      name,
		size:      size,
		estimates: make([]Estimate, 0, size),
	}
}

func (b *Buffer) Name() string { return b.name }

func (b *Buffer) Push(estimate Estimate) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if len(b.estimates) == b.size {
		b.estimates = append(b.estimates[:0], b.estimates[1:]...)
	}
	b.estimates = append(b.estimates, estimate)
}

func (b *Buffer) Drain() []Estimate {
	b.lock.Lock()
	defer b.lock.Unlock()
	drained := b.estimates
	b.estimates = make([]Estimate, 0, b.size)
	return drained
}
