package core

import "strings"

// Environment names the deployment context the store runs in.
type Environment string

// Known environments. Production disables client-side storage of health data.
const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// DetectEnvironment classifies a host name: loopback hosts are development,
// hosts mentioning staging or test are staging, anything else is production.
func DetectEnvironment(host string) Environment {
	h := strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndex(h, ":"); i >= 0 && !strings.Contains(h[i:], "]") {
		h = h[:i]
	}
	switch {
	case h == "localhost" || h == "127.0.0.1" || h == "[::1]" || h == "":
		return EnvDevelopment
	case strings.Contains(h, "staging") || strings.Contains(h, "test"):
		return EnvStaging
	default:
		return EnvProduction
	}
}

// ParseEnvironment maps a configured value to an Environment; unknown values detect from host.
func ParseEnvironment(value, host string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(value))) {
	case EnvDevelopment:
		return EnvDevelopment
	case EnvStaging:
		return EnvStaging
	case EnvProduction:
		return EnvProduction
	default:
		return DetectEnvironment(host)
	}
}
