// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command relayd is a small TCP forwarder built on the filtered proxy
// engine instead of io.Copy: the structural descendant of a port-forwarder
// like docker-proxy, now able to plug in a real Filter instead of only
// relaying bytes untouched. It ships wired for the untouched case (two
// DeadFilters) since concrete protocol-aware filters are out of scope here.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"code.hybscloud.com/relay"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.Upstream == "" {
		fmt.Fprintln(os.Stderr, "relayd: --upstream is required")
		os.Exit(2)
	}

	log := logrus.New()
	if lvl, lerr := logrus.ParseLevel(cfg.LogLevel); lerr == nil {
		log.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics relay.Metrics
	if cfg.MetricsListen != "" {
		reg := prometheus.NewRegistry()
		metrics = newPrometheusMetrics(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsListen, Handler: mux}
		go func() {
			if serr := srv.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
				log.WithError(serr).Error("metrics server stopped")
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	engineCfg := relay.NewEngineConfig(
		relay.WithBufSize(cfg.BufSize),
		relay.WithSleepTime(cfg.SleepTime),
		relay.WithMetrics(metrics),
	)

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		log.WithError(err).Fatal("listen failed")
	}
	log.WithField("listen", cfg.Listen).WithField("upstream", cfg.Upstream).Info("relayd listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var dialer net.Dialer
	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			if ctx.Err() != nil {
				log.Info("relayd shutting down")
				return
			}
			log.WithError(aerr).Warn("accept failed")
			continue
		}
		id := xid.New()
		go handleConn(ctx, log.WithField("session", id.String()), conn, &dialer, cfg, engineCfg)
	}
}

func handleConn(ctx context.Context, log *logrus.Entry, client net.Conn, dialer *net.Dialer, cfg *config, engineCfg relay.EngineConfig) {
	defer client.Close()

	log = log.WithField("remote", client.RemoteAddr().String())
	log.Info("accepted connection")

	upstream, err := dialer.DialContext(ctx, "tcp", cfg.Upstream)
	if err != nil {
		log.WithError(err).Error("dial upstream failed")
		return
	}
	defer upstream.Close()

	clientFd, err := dupNonblockingFd(client)
	if err != nil {
		log.WithError(err).Error("could not obtain client descriptor")
		return
	}

	upstreamFd, err := dupNonblockingFd(upstream)
	if err != nil {
		unix.Close(clientFd)
		log.WithError(err).Error("could not obtain upstream descriptor")
		return
	}

	sbs := [relay.DirectionMax]*relay.SockBuf{
		relay.CLIENT: relay.NewSockBuf(clientFd, nil),
		relay.SERVER: relay.NewSockBuf(upstreamFd, nil),
	}
	defer sbs[relay.CLIENT].ShutdownAndClose()
	defer sbs[relay.SERVER].ShutdownAndClose()
	filters := [relay.DirectionMax]relay.Filter{
		relay.CLIENT: relay.NewDeadFilter(sbs[relay.SERVER]),
		relay.SERVER: relay.NewDeadFilter(sbs[relay.CLIENT]),
	}

	for {
		if ctx.Err() != nil {
			return
		}
		res, rerr := relay.DoBidirectionalFilteredProxyEx(sbs, filters, cfg.Timeout, engineCfg)
		if rerr != nil {
			log.WithError(rerr).Warn("session ended with error")
			return
		}
		if res.TimedOut {
			continue
		}
		log.WithField("client_bytes", res.BytesSent[relay.CLIENT]).
			WithField("server_bytes", res.BytesSent[relay.SERVER]).
			Info("session completed")
		return
	}
}
