package adaptor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "replicator"

// Metrics exposes registry counters as Prometheus metrics. Values are read
// on scrape.
type Metrics struct {
	uc    Usecase
	ticks func() int64

	activeRooms     *prometheus.Desc
	activeSessions  *prometheus.Desc
	sessionsTotal   *prometheus.Desc
	messagesTotal   *prometheus.Desc
	broadcastsTotal *prometheus.Desc
	framesSent      *prometheus.Desc
	framesDropped   *prometheus.Desc
	ticksTotal      *prometheus.Desc
}

func NewMetrics(uc Usecase, ticks func() int64) *Metrics {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &Metrics{
		uc:              uc,
		ticks:           ticks,
		activeRooms:     desc("active_rooms", "Rooms with at least one member."),
		activeSessions:  desc("active_sessions", "Connected sessions."),
		sessionsTotal:   desc("sessions_total", "Sessions accepted since start."),
		messagesTotal:   desc("messages_total", "Client frames decoded since start."),
		broadcastsTotal: desc("broadcasts_total", "Room snapshots fanned out since start."),
		framesSent:      desc("frames_sent_total", "Frames queued for delivery."),
		framesDropped:   desc("frames_dropped_total", "Frames dropped because a member queue was full."),
		ticksTotal:      desc("ticks_total", "Broadcast ticks since start."),
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.activeRooms
	ch <- m.activeSessions
	ch <- m.sessionsTotal
	ch <- m.messagesTotal
	ch <- m.broadcastsTotal
	ch <- m.framesSent
	ch <- m.framesDropped
	ch <- m.ticksTotal
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	stats := m.uc.GetStats()
	ch <- prometheus.MustNewConstMetric(m.activeRooms, prometheus.GaugeValue, float64(stats.ActiveRooms))
	ch <- prometheus.MustNewConstMetric(m.activeSessions, prometheus.GaugeValue, float64(stats.ActiveSessions))
	ch <- prometheus.MustNewConstMetric(m.sessionsTotal, prometheus.CounterValue, float64(stats.TotalSessions))
	ch <- prometheus.MustNewConstMetric(m.messagesTotal, prometheus.CounterValue, float64(stats.TotalMessages))
	ch <- prometheus.MustNewConstMetric(m.broadcastsTotal, prometheus.CounterValue, float64(stats.TotalBroadcasts))
	ch <- prometheus.MustNewConstMetric(m.framesSent, prometheus.CounterValue, float64(stats.FramesSent))
	ch <- prometheus.MustNewConstMetric(m.framesDropped, prometheus.CounterValue, float64(stats.FramesDropped))
	var ticks int64
	if m.ticks != nil {
		ticks = m.ticks()
	}
	ch <- prometheus.MustNewConstMetric(m.ticksTotal, prometheus.CounterValue, float64(ticks))
}

// Handler serves the relay metrics together with the Go runtime and process
// collectors from a private registry.
func (m *Metrics) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		m,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
