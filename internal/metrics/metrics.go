package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TranscriptsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicelink_transcripts_total",
			Help: "Final transcripts handled by the session coordinator",
		},
		[]string{"result"}, // sent, duplicate, failed, empty
	)

	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicelink_inbound_messages_total",
			Help: "Group messages received by the session coordinator",
		},
		[]string{"result"}, // accepted, echo, empty
	)

	Sends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicelink_sends_total",
			Help: "Outbound group sends by transport mode",
		},
		[]string{"mode", "result"}, // mode: network, simulated, mock
	)

	Synthesis = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicelink_synthesis_total",
			Help: "Speech synthesis attempts by path",
		},
		[]string{"path", "result"}, // path: cloud, cloud-styled, local
	)

	CaptureRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voicelink_capture_restarts_total",
			Help: "Automatic speech capture restarts",
		},
	)

	ConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "voicelink_connection_state",
			Help: "Current connection state (1 for the active state)",
		},
		[]string{"state"},
	)

	AssistantReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicelink_assistant_replies_total",
			Help: "Replies produced by the assistant responder",
		},
		[]string{"result"},
	)
)

// connectionStates 列出所有可能的连接状态标签。
var connectionStates = []string{"disconnected", "connecting", "connected", "error"}

// SetConnectionState 将当前状态置 1，其余置 0。
func SetConnectionState(state string) {
	for _, s := range connectionStates {
		value := 0.0
		if s == state {
			value = 1
		}
		ConnectionState.WithLabelValues(s).Set(value)
	}
}
