package orchestration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/agora/backend/internal/model/chat"
	"github.com/zhouzirui/agora/backend/internal/model/participant"
	"github.com/zhouzirui/agora/backend/internal/service/ai"
)

// Termination reasons reported in Result.
const (
	TerminationTerminated = "terminated"
	TerminationCeiling    = "ceiling"
)

// Result is the outcome of one discussion.
type Result struct {
	RunID             string      `json:"runId"`
	Answer            string      `json:"answer"`
	Transcript        []chat.Turn `json:"transcript"`
	Invocations       int         `json:"invocations"`
	TerminationReason string      `json:"terminationReason"`
	Reason            string      `json:"reason,omitempty"`
}

// RunObserver receives run level measurements.
type RunObserver interface {
	ObserveRun(terminationReason string, invocations int, elapsed time.Duration, err error)
	ObserveTurn(participant string)
	ObserveDecision(kind string, fallback bool)
}

// Runtime drives discussions. It holds no per-run state and can serve concurrent runs.
type Runtime struct {
	gateway  ai.Gateway
	managers ManagerFactory
	cfg      Config
	observer RunObserver
	logger   *zap.Logger
}

// NewRuntime wires a runtime. observer may be nil.
func NewRuntime(gateway ai.Gateway, managers ManagerFactory, cfg Config, observer RunObserver, logger *zap.Logger) (*Runtime, error) {
	if gateway == nil {
		return nil, errors.New("completion gateway is required")
	}
	if managers == nil {
		return nil, errors.New("manager factory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		gateway:  gateway,
		managers: managers,
		cfg:      cfg.normalized(),
		observer: observer,
		logger:   logger.With(zap.String("component", "runtime")),
	}, nil
}

// Config returns the effective limits.
func (rt *Runtime) Config() Config {
	return rt.cfg
}

// Run discusses question with roster until the manager stops it or the ceiling is hit.
// sink may be nil.
func (rt *Runtime) Run(ctx context.Context, question string, roster []participant.Participant, sink Sink) (*Result, error) {
	question = strings.TrimSpace(question)
	if err := rt.validate(question, roster); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = nopSink{}
	}

	r := &run{
		rt:         rt,
		id:         uuid.NewString(),
		topic:      question,
		manager:    rt.managers(question),
		transcript: chat.NewTranscript(question),
		roster:     append([]participant.Participant(nil), roster...),
		sink:       sink,
		state:      StateAwaitingSelection,
	}
	r.logger = rt.logger.With(zap.String("run_id", r.id))

	start := time.Now()
	result, err := r.execute(ctx)
	if rt.observer != nil {
		reason := ""
		if result != nil {
			reason = result.TerminationReason
		}
		rt.observer.ObserveRun(reason, r.invocations, time.Since(start), err)
	}
	if err != nil {
		r.logger.Warn("discussion failed", zap.Error(err), zap.Int("invocations", r.invocations))
		return nil, err
	}
	r.logger.Info("discussion finished",
		zap.Int("invocations", result.Invocations),
		zap.String("termination", result.TerminationReason),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (rt *Runtime) validate(question string, roster []participant.Participant) error {
	if question == "" {
		return fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(question); n > rt.cfg.MaxQuestionLength {
		return fmt.Errorf("%w: question has %d characters, limit is %d", ErrInvalidInput, n, rt.cfg.MaxQuestionLength)
	}
	if len(roster) == 0 {
		return fmt.Errorf("%w: roster is empty", ErrInvalidInput)
	}
	return nil
}

type run struct {
	rt          *Runtime
	id          string
	topic       string
	manager     Manager
	transcript  *chat.Transcript
	roster      []participant.Participant
	sink        Sink
	state       State
	invocations int
	logger      *zap.Logger
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	first, _ := r.transcript.Last()
	r.sink.OnTurn(first)

	var stop Decision[bool]
	for {
		if ctx.Err() != nil {
			return nil, r.fail(canceled(ctx, "run"))
		}

		speaker, err := r.selectSpeaker(ctx)
		if err != nil {
			return nil, r.fail(err)
		}

		if err := r.moveTo(StateParticipantSpeaking); err != nil {
			return nil, r.fail(err)
		}
		content, err := r.speak(ctx, speaker)
		if err != nil {
			return nil, r.fail(err)
		}
		turn := r.transcript.Append(chat.Turn{Role: chat.RoleParticipant, Name: speaker.Name, Content: content})
		r.invocations++
		r.sink.OnTurn(turn)
		if r.rt.observer != nil {
			r.rt.observer.ObserveTurn(speaker.Name)
		}

		if err := r.moveTo(StateAwaitingTerminationCheck); err != nil {
			return nil, r.fail(err)
		}
		if stop, err = r.checkTermination(ctx); err != nil {
			return nil, r.fail(err)
		}
		if stop.Value {
			break
		}
		if err := r.moveTo(StateAwaitingSelection); err != nil {
			return nil, r.fail(err)
		}
	}

	if err := r.moveTo(StateFinalizing); err != nil {
		return nil, r.fail(err)
	}
	answer, err := r.manager.FilterResults(ctx, r.transcript)
	if err != nil {
		return nil, r.fail(err)
	}
	r.observeDecision(answer.Kind, answer.Fallback)
	if err := r.moveTo(StateTerminal); err != nil {
		return nil, err
	}

	reason := TerminationTerminated
	if r.invocations >= r.rt.cfg.MaxInvocations {
		reason = TerminationCeiling
	}
	return &Result{
		RunID:             r.id,
		Answer:            answer.Value,
		Transcript:        r.transcript.Turns(),
		Invocations:       r.invocations,
		TerminationReason: reason,
		Reason:            stop.Reason,
	}, nil
}

// selectSpeaker returns a roster member even when the manager names someone else.
func (r *run) selectSpeaker(ctx context.Context) (participant.Participant, error) {
	decision, err := r.manager.SelectNextSpeaker(ctx, r.transcript, r.roster)
	if err != nil {
		return participant.Participant{}, err
	}
	speaker, err := resolveSpeaker(decision.Value, r.roster)
	if err != nil {
		fallback, _ := fallbackSpeaker(r.transcript, r.roster)
		r.logger.Warn("manager selected unknown participant", zap.Error(err), zap.String("fallback", fallback.Name))
		speaker = fallback
		decision.Fallback = true
	}
	r.observeDecision(decision.Kind, decision.Fallback)
	r.logger.Debug("speaker selected",
		zap.String("participant", speaker.Name),
		zap.String("reason", decision.Reason),
		zap.Bool("fallback", decision.Fallback),
	)
	return speaker, nil
}

func (r *run) checkTermination(ctx context.Context) (Decision[bool], error) {
	if input, err := r.manager.ShouldRequestUserInput(ctx, r.transcript); err == nil && input.Value {
		r.logger.Debug("manager asked for user input, continuing without it", zap.String("reason", input.Reason))
	}

	decision, err := r.manager.ShouldTerminate(ctx, r.transcript, r.invocations)
	if err != nil {
		return decision, err
	}
	r.observeDecision(decision.Kind, decision.Fallback)
	if !decision.Value && r.invocations >= r.rt.cfg.MaxInvocations {
		decision.Value = true
		decision.Reason = ReasonCeilingReached
	}
	return decision, nil
}

func (r *run) speak(ctx context.Context, speaker participant.Participant) (string, error) {
	req := ai.Request{
		Purpose:   ai.PurposeParticipant,
		Directive: participantDirective(speaker, r.topic),
		Placement: ai.DirectiveFirst,
		History:   r.transcript.Turns(),
	}

	if sg, ok := r.rt.gateway.(ai.StreamingGateway); ok && r.rt.cfg.Streaming {
		return r.stream(ctx, sg, req, speaker.Name)
	}

	text, err := r.rt.gateway.Complete(ctx, req)
	if err != nil {
		return "", gatewayError(ctx, "invoke "+speaker.Name, err)
	}
	return strings.TrimSpace(text), nil
}

func (r *run) stream(ctx context.Context, sg ai.StreamingGateway, req ai.Request, name string) (string, error) {
	reader, err := sg.Stream(ctx, req)
	if err != nil {
		return "", gatewayError(ctx, "stream "+name, err)
	}
	defer reader.Close()
	defer r.sink.OnStreamChunk("", true)

	var chunks []*schema.Message
	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", gatewayError(ctx, "stream "+name, err)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			r.sink.OnStreamChunk(chunk.Content, false)
		}
	}

	if len(chunks) == 0 {
		return "", nil
	}
	full, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", fmt.Errorf("stream %s: %w: %w", name, ErrGatewayUnavailable, err)
	}
	return strings.TrimSpace(full.Content), nil
}

func (r *run) moveTo(next State) error {
	if !CanTransition(r.state, next) {
		return fmt.Errorf("illegal transition %s -> %s", r.state, next)
	}
	r.logger.Debug("state transition",
		zap.Stringer("from", r.state),
		zap.Stringer("to", next),
		zap.Int("invocations", r.invocations),
	)
	r.state = next
	return nil
}

func (r *run) fail(err error) error {
	if r.state != StateTerminal {
		_ = r.moveTo(StateTerminal)
	}
	return err
}

func (r *run) observeDecision(kind Kind, fallback bool) {
	if r.rt.observer != nil {
		r.rt.observer.ObserveDecision(string(kind), fallback)
	}
}

type nopSink struct{}

func (nopSink) OnTurn(chat.Turn)           {}
func (nopSink) OnStreamChunk(string, bool) {}
