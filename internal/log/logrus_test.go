package log

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleFormatter(t *testing.T) {
	f := &SimpleFormatter{}
	entry := &logrus.Entry{
		Time:    time.Date(2025, 4, 6, 17, 30, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "vision source stale",
		Data:    logrus.Fields{"camera": "front", "age_ms": 412},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "2025/04/06 17:30:00.000000 [WAR] vision source stale age_ms=412 camera=front\n", string(out))
}

func TestWriterLoggerWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf).WithField("subsystem", "algae")

	logger.Debugf("angle %.1f", 42.0)

	assert.Contains(t, buf.String(), "[DEB] angle 42.0 subsystem=algae")
}

func TestNewLogrusLoggerCreatesLogDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "robot.log")

	logger, err := NewLogrusLogger(Options{Level: "not-a-level", File: file, MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Infof("robot booted")
	assert.FileExists(t, file)
}
