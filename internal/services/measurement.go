// Package services contains the application services of the glucolink CLI.
// This file defines the measurement service: current reading, history,
// sensor status and the connection list, all running through the session
// manager's single-retry authentication wrapper.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/glucolink/internal/analytics"
	"github.com/dmitrijs2005/glucolink/internal/config"
	"github.com/dmitrijs2005/glucolink/internal/linkup"
	"github.com/dmitrijs2005/glucolink/internal/logging"
	"github.com/dmitrijs2005/glucolink/internal/session"
)

// API is what the measurement service needs from the upstream client.
type API interface {
	Connections(ctx context.Context, auth linkup.AuthContext) ([]linkup.Connection, error)
	Graph(ctx context.Context, auth linkup.AuthContext, patientID string) (*linkup.GraphResponse, error)
	Logbook(ctx context.Context, auth linkup.AuthContext, patientID string) ([]linkup.Measurement, error)
}

// CurrentReading is the latest glucose value of the followed patient.
type CurrentReading struct {
	PatientID string
	Value     float64
	Trend     int
	TakenAt   time.Time
	High      bool
	Low       bool
}

// SensorStatus reports the worn sensor and its remaining lifetime, computed
// from the configured wear duration.
type SensorStatus struct {
	SerialNumber string
	ActivatedAt  time.Time
	ExpiresAt    time.Time
	Expired      bool
	Remaining    time.Duration
}

// MeasurementService exposes the read operations of the CLI.
//
// Contract:
//   - Current: the latest reading of the first connection.
//   - History: merged graph and logbook readings since the given time,
//     sorted ascending, duplicates removed.
//   - Sensor: sensor identity and expiry of the first connection.
//   - ConnectionList: all connections shared with this follower.
//
// Every method authenticates through the session manager and retries its
// upstream call exactly once after a 401.
type MeasurementService interface {
	Current(ctx context.Context) (*CurrentReading, error)
	History(ctx context.Context, since time.Time) ([]analytics.Reading, error)
	Sensor(ctx context.Context) (*SensorStatus, error)
	ConnectionList(ctx context.Context) ([]linkup.Connection, error)
}

type measurementService struct {
	sessions session.Manager
	api      API
	cfg      *config.Config
	logger   logging.Logger

	now func() time.Time
}

func NewMeasurementService(sessions session.Manager, api API, cfg *config.Config, logger logging.Logger) MeasurementService {
	return &measurementService{
		sessions: sessions,
		api:      api,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *measurementService) firstConnection(ctx context.Context) (*linkup.Connection, error) {
	connections, err := session.Authed(ctx, s.sessions,
		func(ctx context.Context, auth linkup.AuthContext) ([]linkup.Connection, error) {
			return s.api.Connections(ctx, auth)
		})
	if err != nil {
		return nil, err
	}
	return &connections[0], nil
}

func (s *measurementService) Current(ctx context.Context) (*CurrentReading, error) {
	conn, err := s.firstConnection(ctx)
	if err != nil {
		return nil, err
	}

	graph, err := session.Authed(ctx, s.sessions,
		func(ctx context.Context, auth linkup.AuthContext) (*linkup.GraphResponse, error) {
			return s.api.Graph(ctx, auth, conn.PatientID)
		})
	if err != nil {
		return nil, err
	}

	m := graph.Connection.GlucoseMeasurement
	if m == nil {
		return nil, errors.New("current: connection reports no reading")
	}
	takenAt, err := m.Time()
	if err != nil {
		return nil, fmt.Errorf("current: %w", err)
	}

	return &CurrentReading{
		PatientID: conn.PatientID,
		Value:     m.ValueInMgPerDl,
		Trend:     m.TrendArrow,
		TakenAt:   takenAt,
		High:      m.IsHigh,
		Low:       m.IsLow,
	}, nil
}

func (s *measurementService) History(ctx context.Context, since time.Time) ([]analytics.Reading, error) {
	conn, err := s.firstConnection(ctx)
	if err != nil {
		return nil, err
	}

	graph, err := session.Authed(ctx, s.sessions,
		func(ctx context.Context, auth linkup.AuthContext) (*linkup.GraphResponse, error) {
			return s.api.Graph(ctx, auth, conn.PatientID)
		})
	if err != nil {
		return nil, err
	}

	logbook, err := session.Authed(ctx, s.sessions,
		func(ctx context.Context, auth linkup.AuthContext) ([]linkup.Measurement, error) {
			return s.api.Logbook(ctx, auth, conn.PatientID)
		})
	if err != nil {
		return nil, err
	}

	readings := s.toReadings(ctx, graph.GraphData)
	readings = append(readings, s.toReadings(ctx, logbook)...)

	filtered := readings[:0]
	for _, r := range readings {
		if !r.Time.Before(since) {
			filtered = append(filtered, r)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Time.Before(filtered[j].Time) })

	// Graph and logbook overlap; keep the first reading per timestamp.
	deduped := filtered[:0]
	for _, r := range filtered {
		if len(deduped) > 0 && r.Time.Equal(deduped[len(deduped)-1].Time) {
			continue
		}
		deduped = append(deduped, r)
	}
	return deduped, nil
}

// toReadings converts wire measurements, dropping entries whose timestamp is
// unparseable rather than failing the whole history.
func (s *measurementService) toReadings(ctx context.Context, measurements []linkup.Measurement) []analytics.Reading {
	readings := make([]analytics.Reading, 0, len(measurements))
	for _, m := range measurements {
		ts, err := m.Time()
		if err != nil {
			s.logger.Warn(ctx, "skipping reading with unparseable timestamp", "timestamp", m.Timestamp)
			continue
		}
		readings = append(readings, analytics.Reading{Time: ts, Value: m.ValueInMgPerDl})
	}
	return readings
}

func (s *measurementService) Sensor(ctx context.Context) (*SensorStatus, error) {
	conn, err := s.firstConnection(ctx)
	if err != nil {
		return nil, err
	}
	if conn.Sensor == nil {
		return nil, errors.New("sensor: connection reports no sensor")
	}

	activated := conn.Sensor.ActivatedAt()
	expires := activated.Add(s.cfg.SensorLifetime)
	now := s.now()

	status := &SensorStatus{
		SerialNumber: conn.Sensor.SerialNumber,
		ActivatedAt:  activated,
		ExpiresAt:    expires,
		Expired:      !now.Before(expires),
	}
	if remaining := expires.Sub(now); remaining > 0 {
		status.Remaining = remaining
	}
	return status, nil
}

func (s *measurementService) ConnectionList(ctx context.Context) ([]linkup.Connection, error) {
	return session.Authed(ctx, s.sessions,
		func(ctx context.Context, auth linkup.AuthContext) ([]linkup.Connection, error) {
			return s.api.Connections(ctx, auth)
		})
}
