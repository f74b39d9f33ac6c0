package event

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Entry is one journal row as exposed over HTTP.
type Entry struct {
	EventType string `json:"event_type"`
	Severity  string `json:"severity,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Time      string `json:"time"` // RFC3339
}

type recentQueryParams struct {
	Minutes   int
	Limit     int
	Type      string
	TimeoutMS int
}

func parseRecent(r *http.Request, defMin, defLim, defTOms int) recentQueryParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return recentQueryParams{
		Minutes:   get("minutes", defMin, 1, 7*24*60),
		Limit:     get("limit", defLim, 1, 500),
		Type:      strings.TrimSpace(q.Get("type")),
		TimeoutMS: get("timeout_ms", defTOms, 200, 5000),
	}
}

func buildFlux(bucket string, p recentQueryParams) string {
	typeFilter := ""
	if p.Type != "" {
		typeFilter = fmt.Sprintf("\n  |> filter(fn: (r) => r.event_type == %q)", p.Type)
	}
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q and (r._field == "count" or r._field == "request_id"))%s
  |> pivot(rowKey: ["_time","event_type","severity","source_service"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> keep(columns: ["_time","event_type","severity","request_id"])
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, p.Minutes, Measurement, typeFilter, p.Limit)
}

// NewRecentHandler serves GET /events/recent?limit=20[&minutes=1440][&type=pump.command].
// Query failures answer an empty list with an X-Error header.
func NewRecentHandler(q api.QueryAPI, bucket string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseRecent(r, 1440, 20, 2000)

		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		res, err := q.Query(ctx, buildFlux(bucket, p))
		if err != nil {
			w.Header().Set("X-Error", "influx-query-error")
			_, _ = w.Write([]byte("[]"))
			return
		}
		defer res.Close()

		out := make([]Entry, 0, p.Limit)
		for res.Next() {
			rec := res.Record()
			out = append(out, Entry{
				EventType: stringValue(rec.ValueByKey("event_type")),
				Severity:  stringValue(rec.ValueByKey("severity")),
				RequestID: stringValue(rec.ValueByKey("request_id")),
				Time:      rec.Time().UTC().Format(time.RFC3339),
			})
		}
		if res.Err() != nil {
			w.Header().Set("X-Error", "influx-iter-error")
		}
		_ = json.NewEncoder(w).Encode(out)
	})
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
