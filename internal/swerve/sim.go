package swerve

import (
	"math"
	"sync"
	"time"

	"github.com/Speshl/gorrc_frc/internal/geometry"
	"github.com/Speshl/gorrc_frc/internal/log"
)

const (
	DefaultNominalVoltage = 12.0
	DefaultHistoryWindow  = 1500 * time.Millisecond
)

type Constants struct {
	MaxSpeed       float64    // m/s at nominal voltage
	MaxAngularRate float64    // rad/s at nominal voltage
	StateStdDevs   [3]float64 // odometry trust, x/y meters and heading radians
	NominalVoltage float64
	HistoryWindow  time.Duration // oldest vision measurement still fused
}

type poseSample struct {
	at   time.Time
	pose geometry.Pose2d
}

var _ Drivetrain = (*SimDrivetrain)(nil)

// SimDrivetrain integrates the commanded speeds into a pose and fuses vision
// measurements against a short history of that pose.
type SimDrivetrain struct {
	lock sync.Mutex

	constants       Constants
	pose            geometry.Pose2d
	speeds          geometry.ChassisSpeeds
	request         Request
	operatorForward geometry.Rotation2d
	history         []poseSample
	lastUpdate      time.Time

	now    func() time.Time
	logger log.Logger
}

func NewSimDrivetrain(constants Constants, logger log.Logger) *SimDrivetrain {
	if constants.NominalVoltage <= 0 {
		constants.NominalVoltage = DefaultNominalVoltage
	}
	if constants.HistoryWindow <= 0 {
		constants.HistoryWindow = DefaultHistoryWindow
	}
	return &SimDrivetrain{
		constants: constants,
		request:   Idle{},
		now:       time.Now,
		logger:    logger.WithField("component", "sim_drivetrain"),
	}
}

func (d *SimDrivetrain) GetState() State {
	d.lock.Lock()
	defer d.lock.Unlock()
	return State{
		Pose:      d.pose,
		Speeds:    d.speeds,
		Timestamp: d.lastUpdate,
	}
}

func (d *SimDrivetrain) ResetPose(pose geometry.Pose2d) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.pose = pose
	d.history = d.history[:0]
	d.logger.Infof("pose reset to (%.2f, %.2f, %.1f deg)", pose.X(), pose.Y(), pose.Rotation.Degrees())
}

func (d *SimDrivetrain) SetControl(req Request) {
	if req == nil {
		req = Idle{}
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	d.request = req
}

func (d *SimDrivetrain) SetOperatorPerspectiveForward(rotation geometry.Rotation2d) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.operatorForward = rotation
}

func (d *SimDrivetrain) OperatorPerspectiveForward() geometry.Rotation2d {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.operatorForward
}

func (d *SimDrivetrain) AddVisionMeasurement(pose geometry.Pose2d, timestamp time.Time, stdDevs [3]float64) {
	for _, stdDev := range stdDevs {
		if math.IsNaN(stdDev) || math.IsInf(stdDev, 0) || stdDev < 0 {
			return
		}
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	if d.now().Sub(timestamp) > d.constants.HistoryWindow {
		d.logger.Debugf("dropping vision measurement older than %s", d.constants.HistoryWindow)
		return
	}

	sample := d.poseAt(timestamp)
	k := [3]float64{}
	for i := range k {
		k[i] = fusionGain(d.constants.StateStdDevs[i], stdDevs[i])
	}

	correction := geometry.Pose2d{
		Translation: geometry.Translation2d{
			X: k[0] * (pose.X() - sample.X()),
			Y: k[1] * (pose.Y() - sample.Y()),
		},
		Rotation: geometry.NewRotation2d(k[2] * pose.Rotation.Minus(sample.Rotation).Radians),
	}

	d.pose = applyCorrection(d.pose, correction)
	for i := range d.history {
		d.history[i].pose = applyCorrection(d.history[i].pose, correction)
	}
}

func (d *SimDrivetrain) UpdateSimState(dt time.Duration, batteryVoltage float64) {
	d.lock.Lock()
	defer d.lock.Unlock()

	speeds := d.request.Apply(ControlParameters{
		CurrentPose:     d.pose,
		OperatorForward: d.operatorForward,
		MaxSpeed:        d.constants.MaxSpeed,
		MaxAngularRate:  d.constants.MaxAngularRate,
	})

	sag := math.Max(0, math.Min(1, batteryVoltage/d.constants.NominalVoltage))
	speeds = limitSpeeds(speeds, d.constants.MaxSpeed*sag, d.constants.MaxAngularRate*sag)
	d.speeds = speeds

	seconds := dt.Seconds()
	field := geometry.ToFieldRelative(speeds, d.pose.Rotation)
	d.pose = geometry.Pose2d{
		Translation: geometry.Translation2d{
			X: d.pose.X() + field.Vx*seconds,
			Y: d.pose.Y() + field.Vy*seconds,
		},
		Rotation: d.pose.Rotation.Plus(geometry.NewRotation2d(speeds.Omega * seconds)),
	}

	d.lastUpdate = d.now()
	d.record(d.lastUpdate)
}

func (d *SimDrivetrain) record(at time.Time) {
	d.history = append(d.history, poseSample{at: at, pose: d.pose})
	cutoff := at.Add(-d.constants.HistoryWindow)
	trim := 0
	for trim < len(d.history) && d.history[trim].at.Before(cutoff) {
		trim++
	}
	d.history = d.history[trim:]
}

// poseAt interpolates the recorded pose at t, falling back to the current pose.
func (d *SimDrivetrain) poseAt(t time.Time) geometry.Pose2d {
	if len(d.history) == 0 || !t.Before(d.history[len(d.history)-1].at) {
		return d.pose
	}
	if !t.After(d.history[0].at) {
		return d.history[0].pose
	}

	for i := 1; i < len(d.history); i++ {
		next := d.history[i]
		if t.After(next.at) {
			continue
		}
		prev := d.history[i-1]
		span := next.at.Sub(prev.at)
		if span <= 0 {
			return next.pose
		}
		return geometry.Interpolate(prev.pose, next.pose, float64(t.Sub(prev.at))/float64(span))
	}
	return d.pose
}

// fusionGain is the steady state Kalman gain for one axis given the state and
// measurement standard deviations.
func fusionGain(stateStdDev, measurementStdDev float64) float64 {
	q := stateStdDev * stateStdDev
	r := measurementStdDev * measurementStdDev
	if q == 0 {
		return 0
	}
	if r == 0 {
		return 1
	}
	return q / (q + math.Sqrt(q*r))
}

func applyCorrection(pose, correction geometry.Pose2d) geometry.Pose2d {
	return geometry.Pose2d{
		Translation: pose.Translation.Plus(correction.Translation),
		Rotation:    pose.Rotation.Plus(correction.Rotation),
	}
}

func limitSpeeds(speeds geometry.ChassisSpeeds, maxSpeed, maxAngularRate float64) geometry.ChassisSpeeds {
	if norm := math.Hypot(speeds.Vx, speeds.Vy); norm > maxSpeed {
		if norm == 0 || maxSpeed <= 0 {
			speeds.Vx, speeds.Vy = 0, 0
		} else {
			speeds.Vx *= maxSpeed / norm
			speeds.Vy *= maxSpeed / norm
		}
	}
	speeds.Omega = math.Max(-maxAngularRate, math.Min(maxAngularRate, speeds.Omega))
	return speeds
}
