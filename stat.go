package mqtt

import (
	"context"
	"encoding/json"
	"github.com/golang-io/requests"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log"
	"net/http"
	"time"
)

type Stat struct {
	Uptime            prometheus.Counter
	ActiveConnections prometheus.Gauge
	PacketReceived    prometheus.Counter
	ByteReceived      prometheus.Counter
	PacketSent        prometheus.Counter
	ByteSent          prometheus.Counter

	// QoS-pipeline and store gauges, covering the delivery engine and
	// retained/session stores alongside the connection-level counters above.
	InflightMessages prometheus.Gauge
	QueuedMessages   prometheus.Gauge
	RetainedMessages prometheus.Gauge
	SessionsTotal    prometheus.Gauge
}

var (
	stat = Stat{
		Uptime:            prometheus.NewCounter(prometheus.CounterOpts{Name: "mqtt_uptime_seconds", Help: "The uptime in seconds"}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{Name: "mqtt_active_client_count", Help: "The active number of MQTT clients"}),
		PacketReceived:    prometheus.NewCounter(prometheus.CounterOpts{Name: "mqtt_received_packets", Help: "The total number of received MQTT packets"}),
		ByteReceived:      prometheus.NewCounter(prometheus.CounterOpts{Name: "mqtt_received_bytes", Help: "The total number of received MQTT bytes"}),
		PacketSent:        prometheus.NewCounter(prometheus.CounterOpts{Name: "mqtt_send_packets", Help: "The total number of send MQTT packets"}),
		ByteSent:          prometheus.NewCounter(prometheus.CounterOpts{Name: "mqtt_send_bytes", Help: "The total number of send MQTT bytes"}),
		InflightMessages:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "mqtt_inflight_messages", Help: "QoS1/2 outbound deliveries awaiting ack, summed across sessions"}),
		QueuedMessages:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "mqtt_queued_messages", Help: "Outbound messages queued behind the inflight cap, summed across sessions"}),
		RetainedMessages:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "mqtt_retained_messages", Help: "Topics currently holding a retained message"}),
		SessionsTotal:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "mqtt_sessions_total", Help: "Persisted (non-clean-start) sessions known to the broker"}),
	}
)

func ServerLog(ctx context.Context, stat *requests.Stat) {
	b, err := json.Marshal(stat.Request.Body)
	log.Printf("%s # body=%s, resp=%v, err=%v", stat.Print(), b, stat.Response.Body, err)
}

func Httpd() error {
	stat.Register()
	stat.RefreshUptime()
	mux := requests.NewServeMux(requests.URL(CONFIG.HTTP.URL), requests.Logf(ServerLog))
	mux.Route("/metrics", promhttp.Handler())
	mux.Pprof()
	s := requests.NewServer(context.Background(), mux, requests.OnStart(func(s *http.Server) {
		log.Printf("http serve: %s", s.Addr)
	}))
	return s.ListenAndServe()
}

func (s *Stat) RefreshUptime() {
	go func() {
		tick := time.NewTicker(time.Second)
		for {
			select {
			case <-tick.C:
				s.Uptime.Inc()
			}
		}
	}()
}

func (s *Stat) Register() {
	prometheus.MustRegister(stat.Uptime)
	prometheus.MustRegister(stat.ActiveConnections)
	prometheus.MustRegister(stat.PacketReceived)
	prometheus.MustRegister(stat.ByteReceived)
	prometheus.MustRegister(stat.PacketSent)
	prometheus.MustRegister(stat.ByteSent)
	prometheus.MustRegister(stat.InflightMessages)
	prometheus.MustRegister(stat.QueuedMessages)
	prometheus.MustRegister(stat.RetainedMessages)
	prometheus.MustRegister(stat.SessionsTotal)
}

// refreshPipelineMetrics polls the server's live connections and stores
// once a second and republishes the QoS-pipeline gauges, the same
// ticker-driven shape as RefreshUptime.
func (s *Server) refreshPipelineMetrics(ctx context.Context) {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			var inflight, queued int
			s.mu.RLock()
			for c := range s.activeConn {
				i, q := c.delivery.Counts()
				inflight += i
				queued += q
			}
			s.mu.RUnlock()
			stat.InflightMessages.Set(float64(inflight))
			stat.QueuedMessages.Set(float64(queued))
			stat.RetainedMessages.Set(float64(s.retained.Count()))
			stat.SessionsTotal.Set(float64(len(s.clients.ClientIDs())))
		}
	}
}
