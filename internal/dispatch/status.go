package dispatch

import (
	"context"
	"fmt"
	"time"
)

// Status is a snapshot of the process counters, served both as the /status
// command reply and by the ops API.
type Status struct {
	Env          string `json:"env"`
	Uptime       string `json:"uptime"`
	Handled      int64  `json:"handled"`
	Recovered    int64  `json:"recovered"`
	Subscribers  int    `json:"subscribers"`
	LogRecords   int64  `json:"log_records"`
	LogBytes     int64  `json:"log_bytes"`
	LogRotations int64  `json:"log_rotations"`
}

// StatusFunc assembles a Status; wired in main where all counters live.
type StatusFunc func(ctx context.Context) (Status, error)

// Text renders the status as a chat reply.
func (s Status) Text() string {
	return fmt.Sprintf(
		"up %s | handled %d, recovered %d | subscribers %d | log: %d records, %d bytes, %d rotations",
		s.Uptime, s.Handled, s.Recovered, s.Subscribers, s.LogRecords, s.LogBytes, s.LogRotations)
}

// Uptime formats a duration the way Status expects it.
func Uptime(since time.Time) string {
	return time.Since(since).Round(time.Second).String()
}
