// Package telemetry keeps a sqlite datalog of what the robot saw and did
// during a session.
package telemetry

import (
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_frc/internal/geometry"
	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/Speshl/gorrc_frc/internal/vision"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

type PoseSample struct {
	At     time.Time
	Mode   string
	Pose   geometry.Pose2d
	Speeds geometry.ChassisSpeeds
}

type MechanismSample struct {
	At             time.Time
	AlgaeAngleDeg  float64
	AlgaeIntakeRPM float64
	HasAlgae       bool
}

// Recorder writes samples for the session started by StartSession.
type Recorder struct {
	*sql.DB

	lock      sync.Mutex
	sessionID int64
	logger    log.Logger
}

func Open(path string, logger log.Logger) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed opening datalog %s: %w", path, err)
	}
	// a single connection keeps in-memory databases shared between calls
	db.SetMaxOpenConns(1)

	_, err = db.Exec(schemaSQL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed creating datalog schema: %w", err)
	}

	logger.Infof("initialized datalog at %s", path)
	return &Recorder{DB: db, logger: logger.WithField("component", "telemetry")}, nil
}

func (r *Recorder) StartSession(robotName string, sim bool, at time.Time) (int64, error) {
	result, err := r.Exec(`INSERT INTO sessions (robot_name, started_ns, sim) VALUES (?, ?, ?)`,
		robotName, at.UnixNano(), sim)
	if err != nil {
		return 0, fmt.Errorf("failed to start session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get session ID: %w", err)
	}

	r.lock.Lock()
	r.sessionID = id
	r.lock.Unlock()
	r.logger.Infof("started datalog session %d", id)
	return id, nil
}

func (r *Recorder) session() (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.sessionID == 0 {
		return 0, fmt.Errorf("no datalog session started")
	}
	return r.sessionID, nil
}

func (r *Recorder) RecordPose(sample PoseSample) error {
	sessionID, err := r.session()
	if err != nil {
		return err
	}

	_, err = r.Exec(`
		INSERT INTO pose_samples (session_id, timestamp_ns, mode, x, y, heading_deg, vx, vy, omega)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, sample.At.UnixNano(), sample.Mode,
		sample.Pose.X(), sample.Pose.Y(), sample.Pose.Rotation.Degrees(),
		sample.Speeds.Vx, sample.Speeds.Vy, sample.Speeds.Omega,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pose sample: %w", err)
	}
	return nil
}

// RecordVision stores every fused vision result in one transaction.
func (r *Recorder) RecordVision(results []vision.Result) error {
	if len(results) == 0 {
		return nil
	}
	sessionID, err := r.session()
	if err != nil {
		return err
	}

	tx, err := r.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin vision insert: %w", err)
	}
	defer tx.Rollback()

	for _, result := range results {
		estimate := result.VisionEstimate
		pose := estimate.EstimatedPose.ToPose2d()
		_, err = tx.Exec(`
			INSERT INTO vision_measurements (session_id, timestamp_ns, camera, x, y, heading_deg,
				tag_count, avg_tag_distance, std_dev_x, std_dev_y, std_dev_theta)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, estimate.Timestamp.UnixNano(), estimate.Camera,
			pose.X(), pose.Y(), pose.Rotation.Degrees(),
			len(estimate.TagIDs), estimate.AverageTagDistance,
			result.StandardDeviations[0], result.StandardDeviations[1], result.StandardDeviations[2],
		)
		if err != nil {
			return fmt.Errorf("failed to insert vision measurement: %w", err)
		}
	}
	return tx.Commit()
}

func (r *Recorder) RecordMechanism(sample MechanismSample) error {
	sessionID, err := r.session()
	if err != nil {
		return err
	}

	_, err = r.Exec(`
		INSERT INTO mechanism_samples (session_id, timestamp_ns, algae_angle_deg, algae_intake_rpm, has_algae)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, sample.At.UnixNano(), sample.AlgaeAngleDeg, sample.AlgaeIntakeRPM, sample.HasAlgae,
	)
	if err != nil {
		return fmt.Errorf("failed to insert mechanism sample: %w", err)
	}
	return nil
}

// PoseSamples returns the pose samples of a session in time order.
func (r *Recorder) PoseSamples(sessionID int64) ([]PoseSample, error) {
	rows, err := r.Query(`
		SELECT timestamp_ns, mode, x, y, heading_deg, vx, vy, omega
		FROM pose_samples WHERE session_id = ? ORDER BY timestamp_ns`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pose samples: %w", err)
	}
	defer rows.Close()

	samples := make([]PoseSample, 0)
	for rows.Next() {
		var (
			ns            int64
			mode          string
			x, y, heading float64
			vx, vy, omega float64
		)
		err = rows.Scan(&ns, &mode, &x, &y, &heading, &vx, &vy, &omega)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pose sample: %w", err)
		}
		samples = append(samples, PoseSample{
			At:     time.Unix(0, ns),
			Mode:   mode,
			Pose:   geometry.NewPose2d(x, y, geometry.FromDegrees(heading)),
			Speeds: geometry.ChassisSpeeds{Vx: vx, Vy: vy, Omega: omega},
		})
	}
	return samples, rows.Err()
}

// Counts returns the number of rows per table for a session.
func (r *Recorder) Counts(sessionID int64) (map[string]int, error) {
	counts := make(map[string]int, 3)
	for _, table := range []string{"pose_samples", "vision_measurements", "mechanism_samples"} {
		var count int
		err := r.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE session_id = ?`, sessionID).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("failed counting %s: %w", table, err)
		}
		counts[table] = count
	}
	return counts, nil
}
