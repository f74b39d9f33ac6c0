package dashboard

import (
	"github.com/LeonardoBeccarini/plantcare/internal/model"
	"github.com/LeonardoBeccarini/plantcare/internal/services/telemetry"
)

// Everything that changes the view reaches the loop as one of these.

type telemetryEvent struct{ ev telemetry.Event }

type imageEvent struct{ ref model.ImageReference }

type analysisDone struct {
	id   string
	text string
	err  error
}

type pumpWritten struct {
	cmd model.PumpCommand
	err error
}

type toggleRequest struct{ reply chan toggleReply }

type toggleReply struct {
	cmd model.PumpCommand
	err error
}

type analyzeRequest struct{ reply chan analyzeReply }

type clearRequest struct{ reply chan analyzeReply }

type analyzeReply struct {
	res model.AnalysisResult
	err error
}

type teardownRequest struct{}
