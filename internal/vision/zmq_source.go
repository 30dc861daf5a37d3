package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Speshl/gorrc_frc/internal/geometry"
	"github.com/Speshl/gorrc_frc/internal/log"
	zmq "github.com/pebbe/zmq4"
	"gonum.org/v1/gonum/num/quat"
)

const DefaultPollTimeout = 100 * time.Millisecond

// estimateFrame is the JSON body a coprocessor publishes for each solve.
type estimateFrame struct {
	Camera             string  `json:"camera"`
	X                  float64 `json:"x"`
	Y                  float64 `json:"y"`
	Z                  float64 `json:"z"`
	Qw                 float64 `json:"qw"`
	Qx                 float64 `json:"qx"`
	Qy                 float64 `json:"qy"`
	Qz                 float64 `json:"qz"`
	TimestampUs        int64   `json:"timestamp_us"`
	TagIDs             []int   `json:"tag_ids"`
	AverageTagDistance float64 `json:"avg_tag_distance"`
}

func decodeFrame(data []byte) (Estimate, error) {
	frame := estimateFrame{}
	err := json.Unmarshal(data, &frame)
	if err != nil {
		return Estimate{}, fmt.Errorf("failed unmarshalling estimate: %w", err)
	}
	if frame.TimestampUs <= 0 {
		return Estimate{}, fmt.Errorf("estimate from %q has no timestamp", frame.Camera)
	}

	return Estimate{
		EstimatedPose: geometry.Pose3d{
			X: frame.X,
			Y: frame.Y,
			Z: frame.Z,
			Rotation: quat.Number{
				Real: frame.Qw,
				Imag: frame.Qx,
				Jmag: frame.Qy,
				Kmag: frame.Qz,
			},
		},
		Timestamp:          time.UnixMicro(frame.TimestampUs),
		TagIDs:             frame.TagIDs,
		AverageTagDistance: frame.AverageTagDistance,
		Camera:             frame.Camera,
	}, nil
}

var _ Source = (*ZmqSource)(nil)

// ZmqSource subscribes to a coprocessor publishing [topic, json] messages and
// buffers the decoded estimates until the robot loop drains them.
type ZmqSource struct {
	*Buffer
	endpoint    string
	topic       string
	pollTimeout time.Duration

	socket *zmq.Socket
	logger log.Logger
}

func NewZmqSource(endpoint, topic string, bufferSize int, pollTimeout time.Duration, logger log.Logger) *ZmqSource {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &ZmqSource{
		Buffer:      NewBuffer(endpoint, bufferSize),
		endpoint:    endpoint,
		topic:       topic,
		pollTimeout: pollTimeout,
		logger:      logger.WithField("vision_source", endpoint),
	}
}

func (s *ZmqSource) Init() error {
	socket, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return fmt.Errorf("failed creating vision socket: %w", err)
	}

	err = socket.SetSubscribe(s.topic)
	if err != nil {
		socket.Close()
		return fmt.Errorf("failed subscribing to %q: %w", s.topic, err)
	}

	err = socket.Connect(s.endpoint)
	if err != nil {
		socket.Close()
		return fmt.Errorf("failed connecting to %s: %w", s.endpoint, err)
	}

	s.socket = socket
	s.logger.Infof("vision source connected")
	return nil
}

// Close releases the socket. It must not be called while Start is running.
func (s *ZmqSource) Close() error {
	if s.socket == nil {
		return nil
	}
	err := s.socket.Close()
	s.socket = nil
	if err != nil {
		return fmt.Errorf("failed closing vision socket %s: %w", s.endpoint, err)
	}
	return nil
}

// Start receives until ctx is done. The socket is owned by this goroutine
// once Start runs and is closed on return.
func (s *ZmqSource) Start(ctx context.Context) error {
	if s.socket == nil {
		return fmt.Errorf("vision source %s not initialized", s.endpoint)
	}
	defer func() {
		err := s.Close()
		if err != nil {
			s.logger.Warnf("%s", err.Error())
		}
	}()

	poller := zmq.NewPoller()
	poller.Add(s.socket, zmq.POLLIN)

	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("stopping vision source: %s", ctx.Err().Error())
			return ctx.Err()
		default:
		}

		polled, err := poller.Poll(s.pollTimeout)
		if err != nil {
			if zmq.AsErrno(err) == zmq.ETERM {
				return fmt.Errorf("vision source %s terminated: %w", s.endpoint, err)
			}
			s.logger.Warnf("failed polling vision source: %s", err.Error())
			continue
		}
		if len(polled) == 0 {
			continue
		}

		msg, err := s.socket.RecvMessageBytes(0)
		if err != nil {
			s.logger.Warnf("failed receiving vision message: %s", err.Error())
			continue
		}
		if len(msg) < 2 {
			s.logger.Warnf("vision message had %d frames, expected 2", len(msg))
			continue
		}

		estimate, err := decodeFrame(msg[len(msg)-1])
		if err != nil {
			s.logger.Warnf("%s", err.Error())
			continue
		}
		s.Push(estimate)
	}
}
