// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"time"

	"github.com/spf13/pflag"
)

// config holds relayd's CLI surface (§6). Flags only: no file-format
// configuration layer, matching the small-and-explicit preference this
// codebase shows elsewhere for configuration.
type config struct {
	Listen        string
	Upstream      string
	Timeout       time.Duration
	BufSize       int
	SleepTime     time.Duration
	MetricsListen string
	LogLevel      string
}

func parseConfig(args []string) (*config, error) {
	fs := pflag.NewFlagSet("relayd", pflag.ContinueOnError)
	cfg := &config{}

	fs.StringVar(&cfg.Listen, "listen", ":8080", "TCP address to accept connections on")
	fs.StringVar(&cfg.Upstream, "upstream", "", "TCP address to dial for every accepted connection (required)")
	fs.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "readiness-wait timeout passed to every engine call")
	fs.IntVar(&cfg.BufSize, "bufsize", 16*1024, "per-call receive buffer size (BUFSIZE)")
	fs.DurationVar(&cfg.SleepTime, "sleep-time", time.Millisecond, "EINTR back-off interval (SLEEPTIME)")
	fs.StringVar(&cfg.MetricsListen, "metrics-listen", "", "address to serve /metrics on; empty disables it")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "logrus level: trace, debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}
