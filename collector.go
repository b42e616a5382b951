// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsCollector exposes a Metrics aggregator to Prometheus. Values are read
// from a fresh snapshot on every scrape.
type metricsCollector struct {
	metrics *Metrics

	sent       *prometheus.Desc
	succeeded  *prometheus.Desc
	failed     *prometheus.Desc
	bytes      *prometheus.Desc
	topic      *prometheus.Desc
	latencySum *prometheus.Desc
	latencyMin *prometheus.Desc
	latencyMax *prometheus.Desc
}

var _ prometheus.Collector = (*metricsCollector)(nil)

// Collector returns a prometheus.Collector reporting the aggregator's
// counters under the given namespace. Counters restart from zero after Reset.
func (m *Metrics) Collector(namespace string) prometheus.Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "producer", name), help, labels, nil)
	}

	return &metricsCollector{
		metrics:    m,
		sent:       desc("messages_sent_total", "Records handed to the transport."),
		succeeded:  desc("messages_success_total", "Records acknowledged by the broker."),
		failed:     desc("messages_failed_total", "Records that failed delivery."),
		bytes:      desc("bytes_sent_total", "Key and value bytes of sent records."),
		topic:      desc("topic_messages_sent_total", "Records handed to the transport per topic.", "topic"),
		latencySum: desc("latency_seconds_sum", "Cumulative delivery latency of successful records."),
		latencyMin: desc("latency_min_seconds", "Smallest delivery latency observed."),
		latencyMax: desc("latency_max_seconds", "Largest delivery latency observed."),
	}
}

// Describe implements prometheus.Collector.
func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sent
	ch <- c.succeeded
	ch <- c.failed
	ch <- c.bytes
	ch <- c.topic
	ch <- c.latencySum
	ch <- c.latencyMin
	ch <- c.latencyMax
}

// Collect implements prometheus.Collector.
func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.metrics.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.sent, prometheus.CounterValue, float64(s.Sent))
	ch <- prometheus.MustNewConstMetric(c.succeeded, prometheus.CounterValue, float64(s.Succeeded))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(s.Failed))
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(s.Bytes))
	for topic, n := range s.Topics {
		ch <- prometheus.MustNewConstMetric(c.topic, prometheus.CounterValue, float64(n), topic)
	}
	ch <- prometheus.MustNewConstMetric(c.latencySum, prometheus.CounterValue, s.LatencySum.Seconds())
	ch <- prometheus.MustNewConstMetric(c.latencyMin, prometheus.GaugeValue, s.LatencyMin.Seconds())
	ch <- prometheus.MustNewConstMetric(c.latencyMax, prometheus.GaugeValue, s.LatencyMax.Seconds())
}
