package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messageProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "automod_message_duration_sec",
	Help: "Total duration of automod message processing, including dispatch",
})

var messageProcessCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_messages_processed",
	Help: "Number of messages which passed gating and were evaluated",
})

var messageGatedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_messages_gated",
	Help: "Number of messages skipped before rule evaluation, by reason",
}, []string{"reason"})

var verdictCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_verdicts",
	Help: "Number of rule verdicts, by rule kind and punishment",
}, []string{"kind", "punishment"})

var rulePanicCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_rule_panics",
	Help: "Number of rule evaluations which panicked",
}, []string{"kind"})

var dispatchFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_dispatch_failures",
	Help: "Number of failed platform actions during dispatch, by punishment and error class",
}, []string{"punishment", "class"})

var modlogFailureCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_modlog_failures",
	Help: "Number of moderation log entries which could not be written",
})

var silenceTriggerCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_silence_triggers",
	Help: "Number of messages which bumped a channel silence counter",
})

var standingLookups = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_standing_lookups",
	Help: "Number of member standing reads from the platform (cache misses)",
})
