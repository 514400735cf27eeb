package models

import "time"

// ProcessState is the lifecycle state of the supervised frp client.
type ProcessState string

const (
	StateStopped  ProcessState = "stopped"
	StateStarting ProcessState = "starting"
	StateRunning  ProcessState = "running"
	StateErrored  ProcessState = "errored"
)

// Process is a point-in-time view of the supervised client.
type Process struct {
	Name      string       `json:"name"`
	State     ProcessState `json:"state"`
	Pid       int          `json:"pid,omitempty"`
	Running   bool         `json:"running"`
	StartedAt *time.Time   `json:"startedAt,omitempty"`
	Uptime    string       `json:"uptime"`
	ExitCode  *int         `json:"exitCode,omitempty"`
}

// LogChannel says where a log line came from.
type LogChannel string

const (
	ChannelStdout LogChannel = "stdout"
	ChannelStderr LogChannel = "stderr"
	ChannelSystem LogChannel = "system"
)

// LogEntry is one line of client output or one supervisor event.
type LogEntry struct {
	Timestamp time.Time  `json:"timestamp"`
	Channel   LogChannel `json:"channel"`
	Text      string     `json:"text"`
}
