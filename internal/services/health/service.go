package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	DB          Pinger
	Environment string
	Timeout     time.Duration
	Now         func() time.Time
}

// NewService constructs a new health service. db is nil in memory mode.
func NewService(db Pinger, environment string) *Service {
	return &Service{DB: db, Environment: environment, Timeout: 2 * time.Second, Now: time.Now}
}

// Status is the liveness payload.
type Status struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}

// Readiness reports the dependencies the API needs to serve traffic.
type Readiness struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

// Status returns a simple health payload.
func (s *Service) Status() Status {
	return Status{Status: "OK", Timestamp: s.Now().UTC(), Environment: s.Environment}
}

// Check pings the database. ok is false when it is unreachable.
func (s *Service) Check(ctx context.Context) (Readiness, bool) {
	if s.DB == nil {
		return Readiness{Status: "OK", Database: "memory"}, true
	}
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		return Readiness{Status: "DEGRADED", Database: "unreachable", Error: err.Error()}, false
	}
	return Readiness{Status: "OK", Database: "ok"}, true
}
