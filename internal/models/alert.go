package models

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Alert case codes.
const (
	CaseTempCriticalLow  = "TEMP_CRITICAL_LOW"
	CaseTempLow          = "TEMP_LOW"
	CaseTempHigh         = "TEMP_HIGH"
	CaseTempCriticalHigh = "TEMP_CRITICAL_HIGH"
	CaseHumLow           = "HUM_LOW"
	CaseHumHigh          = "HUM_HIGH"
	CaseSoilCriticalLow  = "SOIL_CRITICAL_LOW"
	CaseSoilLow          = "SOIL_LOW"
	CaseVPDLow           = "VPD_LOW"
	CaseVPDHigh          = "VPD_HIGH"
	CaseDLILow           = "DLI_LOW"
	CaseActuatorFailure  = "ACTUATOR_FAILURE"
	CaseEmergencyStop    = "EMERGENCY_STOP"
	CaseSensorAnomaly    = "SENSOR_ANOMALY"
)

// DLIDetail carries the numbers behind a DLI alert.
type DLIDetail struct {
	Current        float64 `json:"current"`
	ExpectedNow    float64 `json:"expected_now"`
	ExpectedTotal  float64 `json:"expected_total"`
	Target         float64 `json:"target"`
	TargetRatio    float64 `json:"target_ratio"`
	Deficit        float64 `json:"deficit"`
	RemainingHours float64 `json:"remaining_hours"`
	OnTrack        bool    `json:"on_track"`
}

// Alert is one operator-facing finding. IDs are only unique within the
// evaluation pass that produced them.
type Alert struct {
	ID       int            `json:"id"`
	CaseCode string         `json:"case_code"`
	Severity Severity       `json:"level"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Actions  []string       `json:"actions"`
	DLI      *DLIDetail     `json:"dli_info,omitempty"`
	Fault    *ActuatorFault `json:"fault,omitempty"`
}
