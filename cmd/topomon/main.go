// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// topomon monitors a MongoDB deployment and runs server selections against it.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ikmak/mongo-topology/config"
	"github.com/ikmak/mongo-topology/internal/logger"
	"github.com/ikmak/mongo-topology/metrics"
	"github.com/ikmak/mongo-topology/topology"
)

var rootCmd = &cobra.Command{
	Use:   "topomon",
	Short: "Monitor the topology of a MongoDB deployment",

	SilenceUsage: true,
}

func init() {
	configFlags := pflag.NewFlagSet("", pflag.ContinueOnError)
	configFlags.String("uri", "", "the mongodb:// connection string of the deployment")
	configFlags.String("config", "", "specifies a TOML config file to load")
	configFlags.String("log-level", "", "the log level to run at (off, info, debug)")
	configFlags.String("log-format", "", "the log format (text, json)")
	configFlags.String("metrics-addr", "", "the address to serve Prometheus metrics on")
	rootCmd.PersistentFlags().AddFlagSet(configFlags)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.SetEnvPrefix("topomon")
	viper.AutomaticEnv()

	_ = viper.BindPFlags(configFlags)

	rootCmd.AddCommand(watchCmd, selectCmd)
}

// env holds what every subcommand needs.
type env struct {
	topo *topology.Topology
	log  *logrus.Logger

	metricsServer *http.Server
}

func readConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if path := viper.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if uri := viper.GetString("uri"); uri != "" {
		cfg.URI = uri
		cfg.Hosts = nil
	}
	if level := viper.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if format := viper.GetString("log-format"); format != "" {
		cfg.Logging.Format = format
	}
	if addr := viper.GetString("metrics-addr"); addr != "" {
		cfg.Metrics.Addr = addr
		if cfg.Metrics.Path == "" {
			cfg.Metrics.Path = config.DefaultMetricsPath
		}
	}

	return cfg, nil
}

func setup() (*env, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	opts, err := cfg.TopologyOptions()
	if err != nil {
		return nil, err
	}

	log, level, err := cfg.Logging.Logger(os.Stderr)
	if err != nil {
		return nil, err
	}
	opts = append(opts, topology.WithLogSink(logger.NewLogrusSink(log), level))

	e := &env{log: log}

	if cfg.Metrics.Addr != "" {
		collector := metrics.New("topomon")
		reg := prometheus.NewRegistry()
		if err := collector.Register(reg); err != nil {
			return nil, errors.Wrap(err, "registering metrics")
		}
		opts = append(opts, topology.WithServerMonitor(collector.Monitor()))

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		e.metricsServer = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := e.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
		log.WithField("addr", cfg.Metrics.Addr).Info("serving metrics")
	}

	e.topo, err = topology.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := e.topo.Connect(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.topo.Disconnect(ctx); err != nil {
		e.log.WithError(err).Warn("failed to disconnect cleanly")
	}
	if e.metricsServer != nil {
		_ = e.metricsServer.Shutdown(ctx)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
