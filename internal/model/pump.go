package model

import "time"

// PumpPath is the store leaf the pump intent is written to.
const PumpPath = "status/pump_on"

// PumpCommand is the operator's intent for the pump. The device reads the
// store value; the next telemetry push is the only confirmation.
type PumpCommand struct {
	ID       string    `json:"id"`
	On       bool      `json:"on"`
	IssuedAt time.Time `json:"issued_at"`
}
