package instance

import "os"

// GetID names the running process in logs: DR_INSTANCE_ID, then the platform
// dyno name, then the hostname.
func GetID() string {
	for _, key := range []string{"DR_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
