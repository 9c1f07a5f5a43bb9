package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"github.com/dmitrijs2005/glucolink/internal/config"
	"github.com/dmitrijs2005/glucolink/internal/linkup"
	"github.com/dmitrijs2005/glucolink/internal/logging"
	"github.com/dmitrijs2005/glucolink/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeSessions struct {
	auth   linkup.AuthContext
	reauth linkup.AuthContext

	ensureCalls   int
	onUnauthCalls int
}

func (f *fakeSessions) EnsureAuthenticated(ctx context.Context) (linkup.AuthContext, error) {
	f.ensureCalls++
	return f.auth, nil
}

func (f *fakeSessions) OnUnauthorized(ctx context.Context) (linkup.AuthContext, error) {
	f.onUnauthCalls++
	return f.reauth, nil
}

func (f *fakeSessions) ClearSession(ctx context.Context) error { return nil }

func (f *fakeSessions) Status() session.Status { return session.Status{} }

type fakeAPI struct {
	connections    []linkup.Connection
	connectionsErr error
	graph          *linkup.GraphResponse
	graphErr       error
	logbook        []linkup.Measurement
	logbookErr     error

	fail401Once bool

	connCalls     int
	graphCalls    int
	logbookCalls  int
	lastPatientID string
	seenTokens    []string
}

func (f *fakeAPI) Connections(ctx context.Context, auth linkup.AuthContext) ([]linkup.Connection, error) {
	f.connCalls++
	f.seenTokens = append(f.seenTokens, auth.Token)
	if f.fail401Once && f.connCalls == 1 {
		return nil, common.ErrUnauthorized
	}
	if f.connectionsErr != nil {
		return nil, f.connectionsErr
	}
	return f.connections, nil
}

func (f *fakeAPI) Graph(ctx context.Context, auth linkup.AuthContext, patientID string) (*linkup.GraphResponse, error) {
	f.graphCalls++
	f.lastPatientID = patientID
	if f.graphErr != nil {
		return nil, f.graphErr
	}
	return f.graph, nil
}

func (f *fakeAPI) Logbook(ctx context.Context, auth linkup.AuthContext, patientID string) ([]linkup.Measurement, error) {
	f.logbookCalls++
	if f.logbookErr != nil {
		return nil, f.logbookErr
	}
	return f.logbook, nil
}

// ---- helpers ----

func wireTS(t time.Time) string {
	return t.Format("1/2/2006 3:04:05 PM")
}

func measurementAt(t time.Time, value float64) linkup.Measurement {
	return linkup.Measurement{Timestamp: wireTS(t), ValueInMgPerDl: value, Value: value}
}

func newService(api *fakeAPI, sessions *fakeSessions, cfg *config.Config) *measurementService {
	if cfg == nil {
		cfg = &config.Config{}
		cfg.LoadDefaults()
	}
	return NewMeasurementService(sessions, api, cfg, logging.Nop()).(*measurementService)
}

func patientConnection() linkup.Connection {
	return linkup.Connection{
		ID:        "c1",
		PatientID: "p1",
		FirstName: "Ann",
		Sensor:    &linkup.Sensor{SerialNumber: "SN123", Activation: time.Now().Add(-10 * 24 * time.Hour).Unix()},
	}
}

// ---- tests ----

func TestCurrent(t *testing.T) {
	takenAt := time.Date(2026, 3, 15, 7, 5, 0, 0, time.Local)
	reading := measurementAt(takenAt, 112)
	reading.TrendArrow = 3

	api := &fakeAPI{
		connections: []linkup.Connection{patientConnection()},
		graph: &linkup.GraphResponse{
			Connection: linkup.Connection{PatientID: "p1", GlucoseMeasurement: &reading},
		},
	}
	svc := newService(api, &fakeSessions{auth: linkup.AuthContext{Token: "tok"}}, nil)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p1", current.PatientID)
	assert.Equal(t, 112.0, current.Value)
	assert.Equal(t, 3, current.Trend)
	assert.True(t, current.TakenAt.Equal(takenAt))
	assert.Equal(t, "p1", api.lastPatientID)
}

func TestCurrentNoReading(t *testing.T) {
	api := &fakeAPI{
		connections: []linkup.Connection{patientConnection()},
		graph:       &linkup.GraphResponse{Connection: linkup.Connection{PatientID: "p1"}},
	}
	svc := newService(api, &fakeSessions{auth: linkup.AuthContext{Token: "tok"}}, nil)

	_, err := svc.Current(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reading")
}

func TestCurrentRecoversFrom401(t *testing.T) {
	takenAt := time.Date(2026, 3, 15, 7, 5, 0, 0, time.Local)
	reading := measurementAt(takenAt, 105)

	sessions := &fakeSessions{
		auth:   linkup.AuthContext{Token: "stale"},
		reauth: linkup.AuthContext{Token: "fresh"},
	}
	api := &fakeAPI{
		fail401Once: true,
		connections: []linkup.Connection{patientConnection()},
		graph: &linkup.GraphResponse{
			Connection: linkup.Connection{PatientID: "p1", GlucoseMeasurement: &reading},
		},
	}
	svc := newService(api, sessions, nil)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 105.0, current.Value)
	assert.Equal(t, 1, sessions.onUnauthCalls, "one 401 means one re-login")
	assert.Equal(t, []string{"stale", "fresh"}, api.seenTokens[:2],
		"the retried call must carry the fresh token")
}

func TestHistoryMergesSortsAndFilters(t *testing.T) {
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.Local)

	api := &fakeAPI{
		connections: []linkup.Connection{patientConnection()},
		graph: &linkup.GraphResponse{
			Connection: linkup.Connection{PatientID: "p1"},
			GraphData: []linkup.Measurement{
				measurementAt(day.Add(7*time.Hour+5*time.Minute), 98),
				measurementAt(day.Add(6*time.Hour+50*time.Minute), 95),
				measurementAt(day.Add(-2*time.Hour), 120), // before since
			},
		},
		logbook: []linkup.Measurement{
			measurementAt(day.Add(7*time.Hour+5*time.Minute), 98), // duplicate
			measurementAt(day.Add(7*time.Hour+20*time.Minute), 141),
		},
	}
	svc := newService(api, &fakeSessions{auth: linkup.AuthContext{Token: "tok"}}, nil)

	readings, err := svc.History(context.Background(), day)
	require.NoError(t, err)

	require.Len(t, readings, 3)
	assert.Equal(t, 95.0, readings[0].Value)
	assert.Equal(t, 98.0, readings[1].Value)
	assert.Equal(t, 141.0, readings[2].Value)
	for i := 1; i < len(readings); i++ {
		assert.True(t, readings[i-1].Time.Before(readings[i].Time), "ascending order")
	}
}

func TestHistorySkipsUnparseableTimestamps(t *testing.T) {
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.Local)

	api := &fakeAPI{
		connections: []linkup.Connection{patientConnection()},
		graph: &linkup.GraphResponse{
			GraphData: []linkup.Measurement{
				measurementAt(day.Add(7*time.Hour), 98),
				{Timestamp: "not a timestamp", ValueInMgPerDl: 55},
			},
		},
	}
	svc := newService(api, &fakeSessions{auth: linkup.AuthContext{Token: "tok"}}, nil)

	readings, err := svc.History(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 98.0, readings[0].Value)
}

func TestSensor(t *testing.T) {
	activated := time.Now().Add(-10 * 24 * time.Hour)
	conn := patientConnection()
	conn.Sensor = &linkup.Sensor{SerialNumber: "SN123", Activation: activated.Unix()}

	cfg := &config.Config{}
	cfg.LoadDefaults() // 14 day lifetime

	api := &fakeAPI{connections: []linkup.Connection{conn}}
	svc := newService(api, &fakeSessions{auth: linkup.AuthContext{Token: "tok"}}, cfg)

	now := time.Now()
	svc.now = func() time.Time { return now }

	status, err := svc.Sensor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SN123", status.SerialNumber)
	assert.False(t, status.Expired)
	assert.InDelta(t, (4 * 24 * time.Hour).Hours(), status.Remaining.Hours(), 1)

	// A shorter configured lifetime makes the same sensor expired.
	cfg.SensorLifetime = 7 * 24 * time.Hour
	status, err = svc.Sensor(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Expired)
	assert.Zero(t, status.Remaining)
}

func TestSensorMissing(t *testing.T) {
	conn := patientConnection()
	conn.Sensor = nil

	api := &fakeAPI{connections: []linkup.Connection{conn}}
	svc := newService(api, &fakeSessions{auth: linkup.AuthContext{Token: "tok"}}, nil)

	_, err := svc.Sensor(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sensor")
}

func TestConnectionList(t *testing.T) {
	api := &fakeAPI{connections: []linkup.Connection{
		patientConnection(),
		{ID: "c2", PatientID: "p2", FirstName: "Bob"},
	}}
	svc := newService(api, &fakeSessions{auth: linkup.AuthContext{Token: "tok"}}, nil)

	connections, err := svc.ConnectionList(context.Background())
	require.NoError(t, err)
	require.Len(t, connections, 2)
	assert.Equal(t, "p2", connections[1].PatientID)
}

func TestConnectionListPassesThroughNoConnections(t *testing.T) {
	api := &fakeAPI{connectionsErr: common.ErrNoConnections}
	svc := newService(api, &fakeSessions{auth: linkup.AuthContext{Token: "tok"}}, nil)

	_, err := svc.ConnectionList(context.Background())
	require.ErrorIs(t, err, common.ErrNoConnections)
}
