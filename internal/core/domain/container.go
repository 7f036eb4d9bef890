package domain

import (
	"fmt"
	"math"
	"time"
)

// ContainerNamePrefix starts every notebook container name.
const ContainerNamePrefix = "jupyter-"

// ContainerStatus is the persisted lifecycle state of a launched container.
type ContainerStatus string

const (
	StatusRunning ContainerStatus = "running"
	StatusStopped ContainerStatus = "stopped"
	StatusError   ContainerStatus = "error"
)

// ContainerRequest is what a caller asks for when launching a notebook container.
type ContainerRequest struct {
	Image          string  `json:"image"`
	CPU            float64 `json:"cpu"`
	RAM            float64 `json:"ram"` // GB
	TimeoutMinutes int     `json:"timeout_minutes"`
}

// Resource bounds for a launch. The engine treats a CPU quota under 1ms of
// the 100ms period as unlimited, and refuses memory limits under 6MB.
const (
	MinCPU   = 0.01
	MaxCPU   = 1024
	MinRAMGB = 6.0 / 1024
	MaxRAMGB = 1 << 20
)

// Validate rejects requests that must never reach the runtime.
func (r ContainerRequest) Validate() error {
	if !finite(r.CPU) || r.CPU <= 0 {
		return &ValidationError{Field: "cpu", Reason: "must be greater than 0"}
	}
	if r.CPU < MinCPU || r.CPU > MaxCPU {
		return &ValidationError{Field: "cpu", Reason: fmt.Sprintf("must be between %g and %d", MinCPU, MaxCPU)}
	}
	if !finite(r.RAM) || r.RAM <= 0 {
		return &ValidationError{Field: "ram", Reason: "must be greater than 0"}
	}
	if r.RAM < MinRAMGB || r.RAM > MaxRAMGB {
		return &ValidationError{Field: "ram", Reason: fmt.Sprintf("must be between 6MB and %dGB", MaxRAMGB)}
	}
	if r.TimeoutMinutes < 0 {
		return &ValidationError{Field: "timeout_minutes", Reason: "must not be negative"}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ContainerRecord is the persisted document describing one launch.
type ContainerRecord struct {
	UserID         string          `json:"user_id"`
	ContainerID    string          `json:"container_id"`
	Name           string          `json:"name"`
	Image          string          `json:"image"`
	CreatedAt      time.Time       `json:"created_at"`
	Status         ContainerStatus `json:"status"`
	TimeoutMinutes int             `json:"timeout_minutes"`
	Error          string          `json:"error,omitempty"`
}

// ExpiresAt is when the record's advisory timeout runs out.
func (r *ContainerRecord) ExpiresAt() time.Time {
	return r.CreatedAt.Add(time.Duration(r.TimeoutMinutes) * time.Minute)
}

// LaunchResult is returned to the caller after a successful launch.
type LaunchResult struct {
	ContainerName string `json:"container_name"`
	ContainerID   string `json:"container_id"`
	HostPort      string `json:"host_port"`
	URL           string `json:"jupyter_url"`
}

// RunSpec is the runtime-facing description of a container to create and start.
type RunSpec struct {
	Name        string
	Image       string
	Env         map[string]string
	Labels      map[string]string
	MemoryMB    int64
	CPUQuota    int64
	CPUPeriod   int64
	ServicePort int // container tcp port published on a runtime-chosen host port
}

// ContainerAttrs is what the runtime reports about an existing container.
type ContainerAttrs struct {
	ID     string
	Name   string
	Image  string
	Status string // runtime state: created, running, exited, ...
	Labels map[string]string
	Env    []string
	// Ports maps "<port>/<proto>" to the first bound host port.
	Ports map[string]string
}

// HostPort returns the host port bound to the given container tcp port, or "" if none.
func (a *ContainerAttrs) HostPort(containerPort int) string {
	if a == nil || a.Ports == nil {
		return ""
	}
	return a.Ports[fmt.Sprintf("%d/tcp", containerPort)]
}

// Running reports whether the runtime considers the container running.
func (a *ContainerAttrs) Running() bool {
	return a != nil && a.Status == "running"
}
