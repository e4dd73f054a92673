package config

import "strconv"

// Environment variables read by ApplyEnv.
const (
	EnvAPIKey       = "DOME9_API_KEY"
	EnvAPISecret    = "DOME9_API_SECRET"
	EnvProxy        = "DOME9_HTTPS_PROXY"
	EnvProxyLegacy  = "DOME9_PROXY"
	EnvSMTPServer   = "SMTP_SERVER"
	EnvSMTPPort     = "SMTP_PORT"
	EnvSMTPUser     = "SMTP_USER"
	EnvSMTPPassword = "SMTP_USER_PASSWORD"
	EnvSMTPSSL      = "SMTP_SSL"
)

// MissingEnvError reports a required setting that is absent.
type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	return "Environment Variable required: " + e.Name
}

// ApplyEnv overlays environment values on cfg. Set variables win over file values.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	set := func(dst *string, names ...string) {
		for _, name := range names {
			if v, ok := lookup(name); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	set(&cfg.API.Key, EnvAPIKey)
	set(&cfg.API.Secret, EnvAPISecret)
	set(&cfg.API.Proxy, EnvProxy, EnvProxyLegacy)
	set(&cfg.SMTP.Server, EnvSMTPServer)
	set(&cfg.SMTP.User, EnvSMTPUser)
	set(&cfg.SMTP.Password, EnvSMTPPassword)

	if v, ok := lookup(EnvSMTPPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			// Only email delivery needs the port; a console run goes on.
			cfg.SMTP.Port = 0
			cfg.SMTP.badPort = v
		} else {
			cfg.SMTP.Port = port
			cfg.SMTP.badPort = ""
		}
	}
	if v, ok := lookup(EnvSMTPSSL); ok {
		cfg.SMTP.SSL = parseBool(v)
	}

	return nil
}
