package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Speshl/gorrc_frc/internal/log"
	"github.com/Speshl/gorrc_frc/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct {
	status models.RobotStatus
}

func (f *fakeStatus) Status() models.RobotStatus {
	return f.status
}

type fakeStation struct {
	states []models.DriverStationState
}

func (f *fakeStation) Set(state models.DriverStationState) {
	f.states = append(f.states, state)
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v))
}

func TestHealth(t *testing.T) {
	s := NewServer(0, &fakeStatus{}, nil, log.Discard())

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := map[string]string{}
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestStateBeforeFirstLoop(t *testing.T) {
	s := NewServer(0, &fakeStatus{}, nil, log.Discard())

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/state", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	body := map[string]string{}
	decode(t, resp, &body)
	assert.Contains(t, body["error"], "has not run")
}

func TestState(t *testing.T) {
	status := &fakeStatus{status: models.RobotStatus{
		Name:      "alpha",
		Team:      9999,
		Mode:      "teleop",
		X:         1.5,
		HasAlgae:  true,
		UpdatedAt: time.Unix(100, 0),
	}}
	s := NewServer(0, status, nil, log.Discard())

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/state", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got := models.RobotStatus{}
	decode(t, resp, &got)
	assert.Equal(t, "alpha", got.Name)
	assert.Equal(t, 9999, got.Team)
	assert.Equal(t, 1.5, got.X)
	assert.True(t, got.HasAlgae)
}

func TestSetStationOnlyInSim(t *testing.T) {
	s := NewServer(0, &fakeStatus{}, nil, log.Discard())

	req := httptest.NewRequest(http.MethodPut, "/api/ds", strings.NewReader(`{"enabled":true}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetStation(t *testing.T) {
	station := &fakeStation{}
	s := NewServer(0, &fakeStatus{}, station, log.Discard())

	req := httptest.NewRequest(http.MethodPut, "/api/ds", strings.NewReader(`{"enabled":true,"mode":"autonomous","alliance":"red"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, station.states, 1)
	assert.True(t, station.states[0].Enabled)
	assert.Equal(t, "autonomous", station.states[0].Mode)
	assert.Equal(t, "red", station.states[0].Alliance)
}

func TestSetStationValidation(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		expectedCode int
		expected     models.DriverStationState
	}{
		{
			name:         "unknown alliance",
			body:         `{"enabled":true,"mode":"teleop","alliance":"green"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "abbreviated mode",
			body:         `{"enabled":true,"mode":"auto","alliance":"blue"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "missing mode",
			body:         `{"enabled":true,"alliance":"blue"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "mixed case is normalised",
			body:         `{"enabled":true,"mode":"Teleop","alliance":"Red"}`,
			expectedCode: http.StatusOK,
			expected:     models.DriverStationState{Enabled: true, Mode: "teleop", Alliance: "red"},
		},
		{
			name:         "unassigned alliance",
			body:         `{"enabled":false,"mode":"disabled"}`,
			expectedCode: http.StatusOK,
			expected:     models.DriverStationState{Mode: "disabled"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			station := &fakeStation{}
			s := NewServer(0, &fakeStatus{}, station, log.Discard())

			req := httptest.NewRequest(http.MethodPut, "/api/ds", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := s.App().Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, resp.StatusCode)

			if tt.expectedCode != http.StatusOK {
				assert.Empty(t, station.states)
				return
			}
			require.Len(t, station.states, 1)
			assert.Equal(t, tt.expected, station.states[0])
		})
	}
}

func TestStartStopsWithContext(t *testing.T) {
	s := NewServer(0, &fakeStatus{}, nil, log.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Start(ctx), context.DeadlineExceeded)
}
