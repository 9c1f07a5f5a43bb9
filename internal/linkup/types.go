package linkup

import (
	"encoding/json"
	"time"
)

// AuthContext carries everything an authenticated call needs. The session
// manager produces it; service code passes it through without looking inside.
type AuthContext struct {
	Token     string
	AccountID string
	BaseURL   string
}

// Auth is a successful login: the issued token and the account it belongs to.
// Expires is zero when the payload omitted an expiry (the caller then falls
// back to the token's own exp claim).
type Auth struct {
	UserID  string
	Token   string
	Expires time.Time
}

// LoginResult is a tagged outcome: exactly one of Auth or Redirect is set.
// Rejections are returned as errors, not as a result variant.
type LoginResult struct {
	Auth     *Auth
	Redirect string
}

// Connection is one shared CGM account visible to the logged-in follower.
type Connection struct {
	ID                 string       `json:"id"`
	PatientID          string       `json:"patientId"`
	FirstName          string       `json:"firstName"`
	LastName           string       `json:"lastName"`
	Country            string       `json:"country"`
	Status             int          `json:"status"`
	Sensor             *Sensor      `json:"sensor"`
	GlucoseMeasurement *Measurement `json:"glucoseMeasurement"`
	TargetLow          float64      `json:"targetLow"`
	TargetHigh         float64      `json:"targetHigh"`
}

// Sensor describes the physical sensor attached to a connection.
type Sensor struct {
	DeviceID     string `json:"deviceId"`
	SerialNumber string `json:"sn"`
	Activation   int64  `json:"a"`
}

// ActivatedAt converts the activation unix timestamp.
func (s *Sensor) ActivatedAt() time.Time {
	return time.Unix(s.Activation, 0)
}

// Measurement is a single glucose reading in the upstream wire shape.
// Timestamps come as local wall-clock strings.
type Measurement struct {
	FactoryTimestamp string  `json:"FactoryTimestamp"`
	Timestamp        string  `json:"Timestamp"`
	ValueInMgPerDl   float64 `json:"ValueInMgPerDl"`
	TrendArrow       int     `json:"TrendArrow"`
	MeasurementColor int     `json:"MeasurementColor"`
	GlucoseUnits     int     `json:"GlucoseUnits"`
	Value            float64 `json:"Value"`
	IsHigh           bool    `json:"isHigh"`
	IsLow            bool    `json:"isLow"`
}

// timestampLayout is the upstream wall-clock format, e.g. "3/15/2026 7:05:00 AM".
const timestampLayout = "1/2/2006 3:04:05 PM"

// Time parses the device-local Timestamp.
func (m *Measurement) Time() (time.Time, error) {
	return time.ParseInLocation(timestampLayout, m.Timestamp, time.Local)
}

// GraphResponse is the connection snapshot plus roughly the last twelve hours
// of readings.
type GraphResponse struct {
	Connection Connection    `json:"connection"`
	GraphData  []Measurement `json:"graphData"`
}

// apiEnvelope is the outer JSON shape of every upstream response.
type apiEnvelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *apiError       `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
}

// loginData is the data payload of an auth response. On success user and
// authTicket are set; on a regional redirect only redirect and region are.
type loginData struct {
	User       *wireUser   `json:"user"`
	AuthTicket *wireTicket `json:"authTicket"`
	Redirect   bool        `json:"redirect"`
	Region     string      `json:"region"`
}

type wireUser struct {
	ID string `json:"id"`
}

type wireTicket struct {
	Token    string `json:"token"`
	Expires  int64  `json:"expires"`
	Duration int64  `json:"duration"`
}
