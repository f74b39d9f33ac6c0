package app

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service reported for the dashboard.
const ServiceName = "plantcare.Dashboard"

// HealthReporter mirrors the telemetry link on the standard gRPC health
// service so orchestrators can probe the dashboard.
type HealthReporter struct {
	srv *health.Server
}

func NewHealthReporter() *HealthReporter {
	h := &HealthReporter{srv: health.NewServer()}
	h.SetLink(false)
	return h
}

// SetLink flips SERVING / NOT_SERVING. It matches dashboard.Config.OnLinkChange.
func (h *HealthReporter) SetLink(up bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if up {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus("", st)
	h.srv.SetServingStatus(ServiceName, st)
}

func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Shutdown reports NOT_SERVING for good; later SetLink calls are ignored.
func (h *HealthReporter) Shutdown() {
	h.srv.Shutdown()
}
