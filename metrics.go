package wazzap

import "github.com/prometheus/client_golang/prometheus"

var (
	framesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wazzap_realtime_frames_received_total",
			Help: "Total number of realtime frames received, by type.",
		},
		[]string{"type"},
	)
	framesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wazzap_realtime_frames_dropped_total",
			Help: "Total number of realtime frames dropped without effect.",
		},
		[]string{"reason"},
	)
	closesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wazzap_realtime_closes_total",
			Help: "Total number of connection closures, by classification.",
		},
		[]string{"class"},
	)
	reconnectsScheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wazzap_realtime_reconnects_scheduled_total",
			Help: "Total number of reconnects scheduled.",
		},
	)
	connectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wazzap_realtime_connection_state",
			Help: "1 for the current connection state, 0 otherwise.",
		},
		[]string{"state"},
	)
	unreadIncrementsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wazzap_unread_increments_total",
			Help: "Total number of unread counter increments.",
		},
	)
	chatReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wazzap_chat_reloads_total",
			Help: "Total number of chat list reloads, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		framesReceivedTotal,
		framesDroppedTotal,
		closesTotal,
		reconnectsScheduledTotal,
		connectionState,
		unreadIncrementsTotal,
		chatReloadsTotal,
	)
}

func incFrame(kind string) {
	framesReceivedTotal.WithLabelValues(kind).Inc()
}

func incDropped(reason string) {
	framesDroppedTotal.WithLabelValues(reason).Inc()
}

func incClose(class CloseClass) {
	closesTotal.WithLabelValues(class.String()).Inc()
}

func incReconnect() {
	reconnectsScheduledTotal.Inc()
}

func incUnread() {
	unreadIncrementsTotal.Inc()
}

func incReload(ok bool) {
	if ok {
		chatReloadsTotal.WithLabelValues("ok").Inc()
		return
	}
	chatReloadsTotal.WithLabelValues("error").Inc()
}

func setStateMetric(s ConnState) {
	for _, st := range []ConnState{StateDisconnected, StateConnecting, StateOpen, StateClosing} {
		v := 0.0
		if st == s {
			v = 1
		}
		connectionState.WithLabelValues(st.String()).Set(v)
	}
}
