package event

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the single measurement every journal entry lands in.
const Measurement = "dashboard_event"

// EventToPoint maps a CommonEvent onto an InfluxDB point.
func EventToPoint(evt CommonEvent) *write.Point {
	tags := map[string]string{
		"event_type":     evt.EventType,
		"source_service": evt.SourceService,
		"severity":       evt.Severity,
	}

	// request ids are unique per command: a field, never a tag
	fields := make(map[string]interface{}, len(evt.Fields)+2)
	for k, v := range evt.Fields {
		fields[k] = v
	}
	if evt.RequestID != "" {
		fields["request_id"] = evt.RequestID
	}
	// almeno un field
	if _, ok := fields["count"]; !ok {
		fields["count"] = int64(1)
	}

	return influxdb2.NewPoint(Measurement, tags, fields, evt.Timestamp)
}
