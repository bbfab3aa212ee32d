package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"ynot/internal/domain"
	"ynot/internal/intents"
	"ynot/internal/ports"
)

// ErrQueueFull is returned by TrySubmit when the dispatch queue has no room.
var ErrQueueFull = errors.New("transcript queue is full")

const defaultQueueSize = 32

// NewTranscriptEvent stamps text with an ID and arrival time.
func NewTranscriptEvent(text string, source domain.TranscriptSource) domain.TranscriptEvent {
	return domain.TranscriptEvent{
		ID:         uuid.NewString(),
		Text:       text,
		Source:     source,
		ReceivedAt: time.Now(),
	}
}

// Normalize lowercases and trims transcript text.
func Normalize(text string) string {
	return strings.TrimSpace(strings.ToLower(text))
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRewriter rewrites normalized text before matching.
func WithRewriter(rewriter ports.TextRewriter) DispatcherOption {
	return func(d *Dispatcher) { d.rewriter = rewriter }
}

// WithDispatchMetrics records one observation per dispatch.
func WithDispatchMetrics(metrics ports.MetricsRecorder) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = metrics }
}

// WithDispatchLogger sets the logger.
func WithDispatchLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithQueueSize bounds the number of voice transcripts waiting for dispatch.
func WithQueueSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

// WithTracer replaces the global tracer.
func WithTracer(tracer trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = tracer }
}

// Dispatcher turns transcripts into spoken outcomes. Dispatches never
// overlap: each holds the same weight-1 semaphore from start to finish.
type Dispatcher struct {
	table     *intents.Table
	finalizer replyFinalizer
	rewriter  ports.TextRewriter
	metrics   ports.MetricsRecorder
	tracer    trace.Tracer
	logger    *zap.Logger

	sem       *semaphore.Weighted
	queueSize int
	queue     chan domain.TranscriptEvent
}

func NewDispatcher(
	table *intents.Table,
	synth ports.Synthesizer,
	log ports.TranscriptLog,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		table:     table,
		logger:    zap.NewNop(),
		queueSize: defaultQueueSize,
		sem:       semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer("ynot/dispatch")
	}
	d.logger = d.logger.With(zap.String("component", "dispatch"))
	d.finalizer = newReplyFinalizer(synth, log, d.logger)
	d.queue = make(chan domain.TranscriptEvent, d.queueSize)
	return d
}

// Submit queues event without blocking. A full queue drops it.
func (d *Dispatcher) Submit(event domain.TranscriptEvent) {
	if err := d.TrySubmit(event); err != nil {
		d.logger.Warn("dropping transcript",
			zap.String("transcript_id", event.ID),
			zap.String("text", event.Text),
			zap.Error(err),
		)
	}
}

// TrySubmit queues event, or returns ErrQueueFull.
func (d *Dispatcher) TrySubmit(event domain.TranscriptEvent) error {
	select {
	case d.queue <- event:
		return nil
	default:
		if d.metrics != nil {
			d.metrics.ObserveQueueDrop()
		}
		return ErrQueueFull
	}
}

// Pending reports how many transcripts are queued.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Run dispatches queued transcripts in arrival order until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-d.queue:
			d.Dispatch(ctx, event)
		}
	}
}

// Dispatch interprets one transcript and delivers exactly one reply. It
// waits for any dispatch already in progress.
//
// If ctx ends before the transcript's turn, the dispatch is abandoned: the
// outcome is degraded with an empty utterance, and neither the transcript nor
// a reply is logged or spoken.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.TranscriptEvent) domain.DispatchOutcome {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		// Only shutdown or a disconnected caller gets here.
		d.logger.Warn("dispatch abandoned", zap.String("transcript_id", event.ID), zap.Error(err))
		return domain.DispatchOutcome{
			TranscriptID: event.ID,
			Intent:       domain.IntentNone,
			Status:       domain.OutcomeDegraded,
		}
	}
	defer d.sem.Release(1)

	started := time.Now()
	ctx, span := d.tracer.Start(ctx, "ynot.dispatch", trace.WithAttributes(
		attribute.String("transcript.id", event.ID),
		attribute.String("transcript.source", string(event.Source)),
	))
	defer span.End()

	text := Normalize(event.Text)
	d.finalizer.record(domain.TagUser, text)

	outcome := d.interpret(ctx, text)
	outcome.TranscriptID = event.ID

	if !d.finalizer.Finalize(ctx, outcome.Utterance) {
		span.AddEvent("speech output unavailable")
	}

	elapsed := time.Since(started)
	span.SetAttributes(
		attribute.String("intent.name", outcome.Intent),
		attribute.String("outcome.status", string(outcome.Status)),
	)
	if outcome.Status == domain.OutcomeDegraded {
		span.SetStatus(codes.Error, "degraded")
	}
	if d.metrics != nil {
		d.metrics.ObserveDispatch(outcome.Intent, outcome.Status, elapsed.Seconds())
	}
	d.logger.Info("dispatched",
		zap.String("transcript_id", event.ID),
		zap.String("source", string(event.Source)),
		zap.String("intent", outcome.Intent),
		zap.String("status", string(outcome.Status)),
		zap.Duration("elapsed", elapsed),
	)
	return outcome
}

func (d *Dispatcher) interpret(ctx context.Context, text string) domain.DispatchOutcome {
	if d.rewriter != nil {
		if rewritten := d.rewriter.Rewrite(text); rewritten != text {
			d.logger.Debug("rewrote transcript", zap.String("from", text), zap.String("to", rewritten))
			text = rewritten
		}
	}

	descriptor, ok := d.table.Resolve(text)
	if !ok {
		return domain.DispatchOutcome{
			Intent:    domain.IntentNone,
			Utterance: intents.PhraseNotUnderstood,
			Status:    domain.OutcomeUnmatched,
		}
	}

	param := descriptor.Extract(text)
	if descriptor.Ack != nil {
		d.finalizer.Cue(ctx, descriptor.Ack(param))
	}

	reply := d.invoke(ctx, descriptor, param)
	if reply.Status == "" {
		reply.Status = domain.OutcomeOK
	}
	return domain.DispatchOutcome{
		Intent:    descriptor.Name,
		Parameter: param,
		Utterance: reply.Utterance,
		Status:    reply.Status,
	}
}

func (d *Dispatcher) invoke(ctx context.Context, descriptor intents.Descriptor, param string) (reply intents.Reply) {
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.Error("intent handler panicked",
				zap.String("intent", descriptor.Name),
				zap.Error(fmt.Errorf("panic: %v", recovered)),
			)
			reply = intents.Reply{Utterance: intents.PhraseNotUnderstood, Status: domain.OutcomeDegraded}
		}
	}()
	return descriptor.Handler.Handle(ctx, param)
}
