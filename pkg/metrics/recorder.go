package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes the bot's Prometheus collectors. A nil Recorder is a no-op.
type Recorder struct {
	replies        *prometheus.CounterVec
	replyLatency   *prometheus.HistogramVec
	providerErrors *prometheus.CounterVec
	promptTokens   prometheus.Counter
	faqRecords     *prometheus.GaugeVec
	commands       *prometheus.CounterVec
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewRecorder registers the bot collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		replies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guard_replies_total",
			Help: "Questions handled, partitioned by response mode and outcome",
		}, []string{"mode", "outcome"}),
		replyLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guard_reply_duration_seconds",
			Help:    "Time spent producing a reply, provider calls included",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		providerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guard_provider_errors_total",
			Help: "Failed embedding or completion provider calls",
		}, []string{"provider"}),
		promptTokens: factory.NewCounter(prometheus.CounterOpts{
			Name: "guard_prompt_tokens_total",
			Help: "Prompt tokens sent to the completion provider",
		}),
		faqRecords: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "guard_faq_records",
			Help: "FAQ records currently stored per channel",
		}, []string{"channel"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guard_chat_commands_total",
			Help: "Chat commands dispatched by the router",
		}, []string{"command"}),
	}
}

// ObserveReply records the outcome and latency of one question.
func (r *Recorder) ObserveReply(mode, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.replies.WithLabelValues(mode, outcome).Inc()
	r.replyLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ProviderError counts a failed call to the named provider.
func (r *Recorder) ProviderError(provider string) {
	if r == nil {
		return
	}
	r.providerErrors.WithLabelValues(provider).Inc()
}

// PromptTokens adds usage to the prompt token counter.
func (r *Recorder) PromptTokens(usage TokenUsage) {
	if r == nil || usage.PromptTokens <= 0 {
		return
	}
	r.promptTokens.Add(float64(usage.PromptTokens))
}

// SetFAQRecords publishes the record count of a channel.
func (r *Recorder) SetFAQRecords(channel string, n int) {
	if r == nil {
		return
	}
	r.faqRecords.WithLabelValues(channel).Set(float64(n))
}

// ForgetChannel drops per-channel series after the bot leaves a channel.
func (r *Recorder) ForgetChannel(channel string) {
	if r == nil {
		return
	}
	r.faqRecords.DeleteLabelValues(channel)
}

// Command counts a dispatched chat command.
func (r *Recorder) Command(name string) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(name).Inc()
}
