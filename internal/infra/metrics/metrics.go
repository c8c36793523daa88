package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wear-voice/internal/application"
	"wear-voice/internal/domain"
)

// Metrics instruments the voice pipeline by decorating its ports.
type Metrics struct {
	registry *prometheus.Registry

	commands           *prometheus.CounterVec
	sessions           *prometheus.CounterVec
	recognitionErrors  *prometheus.CounterVec
	recognitionLatency prometheus.Histogram
	utterances         *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wear_voice_commands_total",
			Help: "Voice commands dispatched, by action.",
		}, []string{"action"}),
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wear_voice_recognition_sessions_total",
			Help: "Recognition sessions, by outcome.",
		}, []string{"outcome"}),
		recognitionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wear_voice_recognition_errors_total",
			Help: "Recognition errors, by platform error code.",
		}, []string{"code"}),
		recognitionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wear_voice_recognition_latency_seconds",
			Help:    "Time from session start to its final callback.",
			Buckets: prometheus.DefBuckets,
		}),
		utterances: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wear_voice_utterances_total",
			Help: "Synthesized utterances, by result.",
		}, []string{"result"}),
	}
}

// Register mounts GET /metrics.
func (m *Metrics) Register(mux *http.ServeMux) {
	mux.Handle("GET /metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) Parser(p application.IntentParser) application.IntentParser {
	return &parser{next: p, m: m}
}

func (m *Metrics) Recognizer(r application.Recognizer) application.Recognizer {
	return &recognizer{next: r, m: m}
}

func (m *Metrics) Synthesizer(s application.Synthesizer) application.Synthesizer {
	return &synthesizer{Synthesizer: s, m: m}
}

type parser struct {
	next application.IntentParser
	m    *Metrics
}

func (p *parser) Parse(ctx context.Context, text string) (*domain.Command, error) {
	cmd, err := p.next.Parse(ctx, text)
	if cmd != nil {
		p.m.commands.WithLabelValues(string(cmd.Action)).Inc()
	}
	return cmd, err
}

type recognizer struct {
	next application.Recognizer
	m    *Metrics
}

func (r *recognizer) StartListening(ctx context.Context, req application.RecognitionRequest, l application.RecognitionListener) error {
	err := r.next.StartListening(ctx, req, &listener{RecognitionListener: l, m: r.m, start: time.Now()})
	if err != nil {
		r.m.sessions.WithLabelValues("start_failed").Inc()
	}
	return err
}

func (r *recognizer) Close() error {
	return r.next.Close()
}

type listener struct {
	application.RecognitionListener
	m     *Metrics
	start time.Time
}

func (l *listener) OnError(code int) {
	l.m.sessions.WithLabelValues("error").Inc()
	l.m.recognitionErrors.WithLabelValues(strconv.Itoa(code)).Inc()
	l.m.recognitionLatency.Observe(time.Since(l.start).Seconds())
	l.RecognitionListener.OnError(code)
}

func (l *listener) OnResults(matches []string) {
	l.m.sessions.WithLabelValues("results").Inc()
	l.m.recognitionLatency.Observe(time.Since(l.start).Seconds())
	l.RecognitionListener.OnResults(matches)
}

type synthesizer struct {
	application.Synthesizer
	m *Metrics
}

func (s *synthesizer) Speak(ctx context.Context, text string) error {
	err := s.Synthesizer.Speak(ctx, text)
	switch {
	case err == nil:
		s.m.utterances.WithLabelValues("completed").Inc()
	case ctx.Err() != nil:
		s.m.utterances.WithLabelValues("interrupted").Inc()
	default:
		s.m.utterances.WithLabelValues("failed").Inc()
	}
	return err
}
