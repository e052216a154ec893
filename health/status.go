package health

import (
	"regexp"
	"time"
)

// Health states
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

var (
	urlRegex      = regexp.MustCompile(`[a-z]+://[^\s]+`)
	unixPathRegex = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	ipAddrRegex   = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
)

// Status represents the health state of a component or system
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics are the data path counters attached to a status.
type Metrics struct {
	Uptime     time.Duration `json:"uptime,omitempty"`
	QueueDepth int64         `json:"queue_depth"`
	Drops      int64         `json:"drops"`
	Processed  int64         `json:"processed,omitempty"`
	Failed     int64         `json:"failed,omitempty"`
}

func (s Status) IsHealthy() bool { return s.Status == StateHealthy }

func (s Status) IsDegraded() bool { return s.Status == StateDegraded }

func (s Status) IsUnhealthy() bool { return s.Status == StateUnhealthy }

// WithMetrics returns a copy of the status with metrics attached
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// WithSubStatus adds a sub-status and returns a copy
func (s Status) WithSubStatus(subStatus Status) Status {
	// Create a new slice to avoid sharing the underlying array
	newSubStatuses := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(newSubStatuses, s.SubStatuses)
	s.SubStatuses = append(newSubStatuses, subStatus)
	return s
}

// sanitizeErrorMessage strips URLs, file paths and IP addresses from error text
// before it is published on the health endpoint.
func sanitizeErrorMessage(err string) string {
	if err == "" {
		return ""
	}
	sanitized := urlRegex.ReplaceAllString(err, "[URL]")
	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	return ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
}
