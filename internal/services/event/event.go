package event

import (
	"time"

	"github.com/LeonardoBeccarini/plantcare/internal/model"
)

const (
	TypePumpCommand     = "pump.command"
	TypePumpWriteFailed = "pump.write_failed"
	TypePumpLocked      = "pump.locked"
	TypeAnalysisResult  = "analysis.result"
	TypeTelemetryLink   = "telemetry.link"
)

const SourceDashboard = "dashboard"

type CommonEvent struct {
	EventType     string // pump.command | pump.write_failed | analysis.result | telemetry.link | ...
	SourceService string
	RequestID     string // pump command id or analysis request id
	Severity      string // info|warning|error
	Fields        map[string]interface{}
	Timestamp     time.Time
}

func PumpCommand(cmd model.PumpCommand) CommonEvent {
	return CommonEvent{
		EventType:     TypePumpCommand,
		SourceService: SourceDashboard,
		RequestID:     cmd.ID,
		Severity:      "info",
		Fields:        map[string]interface{}{"on": cmd.On},
		Timestamp:     cmd.IssuedAt,
	}
}

func PumpWriteFailed(cmd model.PumpCommand, err error, at time.Time) CommonEvent {
	return CommonEvent{
		EventType:     TypePumpWriteFailed,
		SourceService: SourceDashboard,
		RequestID:     cmd.ID,
		Severity:      "error",
		Fields:        map[string]interface{}{"on": cmd.On, "error": errString(err)},
		Timestamp:     at,
	}
}

func PumpLocked(at time.Time) CommonEvent {
	return CommonEvent{
		EventType:     TypePumpLocked,
		SourceService: SourceDashboard,
		Severity:      "warning",
		Fields:        map[string]interface{}{"reason": "water tank empty"},
		Timestamp:     at,
	}
}

func AnalysisResult(res model.AnalysisResult) CommonEvent {
	sev := "info"
	if res.State == model.AnalysisFailed {
		sev = "warning"
	}
	fields := map[string]interface{}{
		"state":        string(res.State),
		"duration_sec": res.FinishedAt.Sub(res.StartedAt).Seconds(),
	}
	if res.FailureKind != "" {
		fields["failure_kind"] = res.FailureKind
		fields["reason"] = res.Reason
	} else {
		fields["text_len"] = int64(len(res.Text))
	}
	ts := res.FinishedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return CommonEvent{
		EventType:     TypeAnalysisResult,
		SourceService: SourceDashboard,
		RequestID:     res.RequestID,
		Severity:      sev,
		Fields:        fields,
		Timestamp:     ts,
	}
}

func TelemetryLink(up bool, at time.Time) CommonEvent {
	sev := "info"
	if !up {
		sev = "warning"
	}
	return CommonEvent{
		EventType:     TypeTelemetryLink,
		SourceService: SourceDashboard,
		Severity:      sev,
		Fields:        map[string]interface{}{"up": up},
		Timestamp:     at,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
