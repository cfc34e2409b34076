package instance

import (
	"os"

	"github.com/Hynox-org/aharraa-server/pkg/env"
)

// GetID identifies this process in worker logs: AHARRAA_WORKER_ID, then the
// platform dyno name, then the hostname.
func GetID() string {
	if id := env.Get("AHARRAA_WORKER_ID", env.Get("DYNO", "")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
