// Package cmd is responsible for the program's command-line interface.
package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/ameshkov/revlistener/internal/config"
	"github.com/ameshkov/revlistener/internal/handler"
	"github.com/ameshkov/revlistener/internal/metrics"
	"github.com/ameshkov/revlistener/internal/route"
	"github.com/ameshkov/revlistener/internal/version"
	goFlags "github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Main is the entry point of the program.
func Main() {
	o, err := parseOptions(os.Args[1:])
	var flagErr *goFlags.Error
	if errors.As(err, &flagErr) && flagErr.Type == goFlags.ErrHelp {
		// This is a special case when we exit process here as we received
		// --help.
		os.Exit(0)
	}

	check("parse args", err)

	if o.Version {
		fmt.Printf("revlistener version: %s\n", version.Version())

		os.Exit(0)
	}

	if o.Verbose {
		log.SetLevel(log.DEBUG)
	}

	envs, err := readEnvs()
	check("read environment", err)

	cfg, err := loadConfig(o.ConfigPath, envs)
	check("load configuration", err)

	conf, err := cfg.ToHandlerConfig()
	check("parse handler config", err)

	res, err := cfg.ToResolver()
	check("parse dns config", err)

	closers := []io.Closer{}
	if res != nil {
		conf.Resolver = res
		closers = append(closers, res)
	}

	conf.Routes = route.NewTable()
	conf.Context = o

	sess := newStdioSession(os.Stdin, os.Stdout)
	srv, err := handler.NewServer(conf, sess.handle)
	check("init handler", err)

	err = srv.Start()
	check("start handler", err)

	metrics.SetUpGauge(version.Version(), "", "", runtime.Version())

	if cfg.Prometheus != nil {
		go serveMetrics(cfg.Prometheus.Addr, cfg.Prometheus.Port)
	}

	closers = append([]io.Closer{srv}, closers...)
	sigHandler := newSignalHandler(closers...)
	os.Exit(sigHandler.handle())
}

// loadConfig reads the configuration file if path is set, overrides it with
// envs, and validates the result.
func loadConfig(path string, envs *environments) (cfg *config.File, err error) {
	cfg = &config.File{}
	if path != "" {
		cfg, err = config.Read(path)
		if err != nil {
			// Don't wrap the error since it's informative enough as is.
			return nil, err
		}
	}

	envs.apply(cfg)

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return cfg, nil
}

// check logs the error and exits the process if err is not nil.
func check(operationName string, err error) {
	if err != nil {
		log.Error("failed to %s: %v", operationName, err)

		os.Exit(1)
	}
}

// serveMetrics starts the prometheus metrics and health check endpoints.
func serveMetrics(listenAddr string, port uint16) {
	metricsAddr := netutil.JoinHostPort(listenAddr, port)
	log.Info("Starting metrics at %s", metricsAddr)

	mux := &http.ServeMux{}
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health-check", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "OK")
	})

	srv := &http.Server{
		Addr:         metricsAddr,
		Handler:      mux,
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}

	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Metrics failed to listen to %s: %v", metricsAddr, err)
	}
}
