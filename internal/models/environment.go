package models

import (
	"fmt"
	"time"
)

type Actuator string

const (
	ActuatorValve     Actuator = "valve"
	ActuatorFan       Actuator = "fan"
	ActuatorLEDWhite  Actuator = "led_white"
	ActuatorLEDPurple Actuator = "led_purple"
	ActuatorCurtain   Actuator = "curtain"
	ActuatorSystem    Actuator = "system"
)

type ActuatorStatus string

const (
	StatusOn     ActuatorStatus = "ON"
	StatusOff    ActuatorStatus = "OFF"
	StatusOpen   ActuatorStatus = "OPEN"
	StatusClosed ActuatorStatus = "CLOSED"
)

// Reading is one raw sensor sample as delivered by an ingestion source.
// VPD is optional; the sensor board may report its own value.
type Reading struct {
	Temperature float64  `json:"temp"`
	Humidity    float64  `json:"hum"`
	SoilPct     float64  `json:"soil_pct"`
	Lux         float64  `json:"lux"`
	VPD         *float64 `json:"vpd,omitempty"`
}

// Validate rejects readings outside their physical range.
func (r Reading) Validate() error {
	if r.Humidity < 0 || r.Humidity > 100 || r.SoilPct < 0 || r.SoilPct > 100 || r.Lux < 0 {
		return fmt.Errorf("reading out of range: hum=%v soil=%v lux=%v", r.Humidity, r.SoilPct, r.Lux)
	}
	return nil
}

// ActuatorFault records a gateway call that did not succeed.
type ActuatorFault struct {
	Actuator Actuator  `json:"actuator"`
	Command  string    `json:"command"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

// Snapshot is an immutable copy of the shared environment state.
type Snapshot struct {
	Temperature float64 `json:"temp_c"`
	Humidity    float64 `json:"hum_pct"`
	SoilPct     float64 `json:"soil_pct"`
	Lux         float64 `json:"lux"`
	VPD         float64 `json:"vpd_kpa"`
	DLI         float64 `json:"dli_mol"`
	// The last reading carried the board's own VPD.
	BoardVPD bool `json:"board_vpd"`

	Valve     ActuatorStatus `json:"valve_status"`
	Fan       ActuatorStatus `json:"fan_status"`
	LEDWhite  ActuatorStatus `json:"led_w_status"`
	LEDPurple ActuatorStatus `json:"led_p_status"`
	Curtain   ActuatorStatus `json:"curtain_status"`

	EmergencyStop bool `json:"emergency_stop"`

	WhiteOverrideUntil  time.Time `json:"white_override_until"`
	PurpleOverrideUntil time.Time `json:"purple_override_until"`

	WateringCount int     `json:"watering_count"`
	WaterVolumeL  float64 `json:"water_volume_l"`

	Faults []ActuatorFault `json:"faults,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// HasSensorData reports whether any primary sensor has produced a value.
func (s Snapshot) HasSensorData() bool {
	return s.Temperature != 0 || s.Humidity != 0 || s.Lux != 0
}

// Status returns the tracked status of an actuator.
func (s Snapshot) Status(a Actuator) ActuatorStatus {
	switch a {
	case ActuatorValve:
		return s.Valve
	case ActuatorFan:
		return s.Fan
	case ActuatorLEDWhite:
		return s.LEDWhite
	case ActuatorLEDPurple:
		return s.LEDPurple
	case ActuatorCurtain:
		return s.Curtain
	}
	return ""
}
