package cmd

import (
	"fmt"
	"os"

	"github.com/AdguardTeam/golibs/log"
	"github.com/ameshkov/revlistener/internal/config"
	"github.com/caarlos0/env/v7"
)

// environments stores the values of the parsed environment variables.  Every
// set variable overrides the matching value of the configuration file.
type environments struct {
	LHost       string      `env:"LHOST"`
	LPort       *uint16     `env:"LPORT"`
	BindAddress string      `env:"REVERSE_LISTENER_BIND_ADDRESS"`
	BindPort    *uint16     `env:"REVERSE_LISTENER_BIND_PORT"`
	SSLCertPath string      `env:"HANDLER_SSL_CERT"`
	Proxies     *string     `env:"PROXIES"`
	AllowProxy  *strictBool `env:"REVERSE_ALLOW_PROXY"`
	LogVerbose  strictBool  `env:"VERBOSE" envDefault:"0"`
	LogFile     string      `env:"LOGFILE"`
}

// readEnvs reads the configuration defined by the environment variables.  See
// environments.
func readEnvs() (envs *environments, err error) {
	envs = &environments{}
	err = env.Parse(envs)
	if err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	if envs.LogVerbose {
		log.SetLevel(log.DEBUG)
	}

	if envs.LogFile != "" {
		f, fErr := os.OpenFile(envs.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if fErr != nil {
			return nil, fErr
		}

		log.SetOutput(f)
	}

	return envs, nil
}

// apply overrides the handler section of cfg with the set variables.  cfg
// must be validated again afterwards.
func (envs *environments) apply(cfg *config.File) {
	if cfg.Handler == nil {
		cfg.Handler = &config.Handler{}
	}

	h := cfg.Handler
	if envs.LHost != "" {
		h.LHost = envs.LHost
	}

	if envs.LPort != nil {
		h.LPort = *envs.LPort
	}

	if envs.BindAddress != "" {
		h.BindAddress = envs.BindAddress
	}

	if envs.BindPort != nil {
		h.BindPort = *envs.BindPort
	}

	if envs.SSLCertPath != "" {
		h.SSLCertPath = envs.SSLCertPath
	}

	if envs.Proxies != nil {
		h.Proxies = *envs.Proxies
	}

	if envs.AllowProxy != nil {
		h.AllowProxy = bool(*envs.AllowProxy)
	}
}

// strictBool is a type for booleans that are parsed from the environment more
// strictly than the usual bool.  It only accepts "0" and "1" as valid values.
type strictBool bool

// UnmarshalText implements the encoding.TextUnmarshaler interface for
// *strictBool.
func (sb *strictBool) UnmarshalText(b []byte) (err error) {
	const (
		strictBoolFalse = '0'
		strictBoolTrue  = '1'
	)

	if len(b) == 1 {
		switch b[0] {
		case strictBoolFalse:
			*sb = false

			return nil
		case strictBoolTrue:
			*sb = true

			return nil
		default:
			// Go on and return an error.
		}
	}

	return fmt.Errorf("invalid value %q, supported: %q, %q", b, strictBoolFalse, strictBoolTrue)
}
