// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"code.hybscloud.com/relay"
)

// prometheusMetrics implements relay.Metrics against plain counters. The
// engine already aggregates per-direction totals, so unlike
// exporter.TCPInfoCollector's Describe/Collect split (which pulls live
// kernel tcpinfo on every scrape) this is just registered counters the
// engine increments directly as it observes bytes.
type prometheusMetrics struct {
	bytesRead           *prometheus.CounterVec
	bytesWritten        *prometheus.CounterVec
	placeholdersDrained *prometheus.CounterVec
	sessionsTotal       *prometheus.CounterVec
}

func newPrometheusMetrics(reg prometheus.Registerer) *prometheusMetrics {
	m := &prometheusMetrics{
		bytesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayd_bytes_read_total",
			Help: "Total bytes read per direction.",
		}, []string{"direction"}),
		bytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayd_bytes_written_total",
			Help: "Total bytes written per direction.",
		}, []string{"direction"}),
		placeholdersDrained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayd_placeholders_drained_total",
			Help: "Total write-queue placeholders fully sent per direction.",
		}, []string{"direction"}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayd_sessions_total",
			Help: "Total proxied sessions by terminal outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.bytesRead, m.bytesWritten, m.placeholdersDrained, m.sessionsTotal)
	return m
}

func (m *prometheusMetrics) ObserveRead(d relay.Direction, n int) {
	m.bytesRead.WithLabelValues(d.String()).Add(float64(n))
}

func (m *prometheusMetrics) ObserveWrite(d relay.Direction, n int) {
	m.bytesWritten.WithLabelValues(d.String()).Add(float64(n))
}

func (m *prometheusMetrics) ObservePlaceholderDrained(d relay.Direction, n int) {
	m.placeholdersDrained.WithLabelValues(d.String()).Inc()
}

func (m *prometheusMetrics) ObserveSessionEnd(outcome string) {
	m.sessionsTotal.WithLabelValues(outcome).Inc()
}
