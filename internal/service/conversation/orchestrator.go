package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"virtual-secretary/internal/models"
	"virtual-secretary/internal/observability/logging"
	"virtual-secretary/internal/observability/metrics"
	"virtual-secretary/internal/service/audio"
	"virtual-secretary/internal/service/llm"
	"virtual-secretary/internal/service/tts"
)

var (
	// ErrCouldNotHear ends a turn whose audio could not be transcribed.
	ErrCouldNotHear = errors.New("conversation: could not hear you")

	// ErrEmptyTranscript is wrapped by ErrCouldNotHear when the audio held no speech.
	ErrEmptyTranscript = errors.New("conversation: transcript is empty")
)

// CouldNotHearMessage is the user-facing text of an errored turn.
const CouldNotHearMessage = "Sorry, I could not hear you. Could you say that again?"

// Failed stages reported in events.
const (
	StageTranscription = "transcription"
)

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, src audio.Source, languageHint string) (*models.TranscriptionResult, error)
}

// Responder produces a reply; it never fails, see llm.Reply.
type Responder interface {
	Generate(ctx context.Context, message string, useHistory bool) llm.Reply
}

// historySizer is implemented by responders that keep a history.
type historySizer interface {
	HistoryLen() int
}

// Speaker renders text as audio in the cloned voice.
type Speaker interface {
	Synthesize(ctx context.Context, text, language, outputPath string) (*models.SynthesisResult, error)
}

// EventSink receives one event per finished turn.
type EventSink interface {
	PublishTurnCompleted(ctx context.Context, evt models.TurnCompleted) error
	PublishTurnFailed(ctx context.Context, evt models.TurnFailed) error
}

// TurnOptions control one turn.
type TurnOptions struct {
	UseHistory bool
	Language   string // hint for transcription and synthesis, "" = configured default
	OutputPath string // where to write the reply audio, "" = keep in memory only
}

// DefaultTurnOptions returns options for a normal conversational turn.
func DefaultTurnOptions() TurnOptions {
	return TurnOptions{UseHistory: true}
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	TurnID        string
	State         State
	Transcript    *models.TranscriptionResult
	UserText      string
	AssistantText string
	Audio         *models.SynthesisResult // nil for degraded and errored turns
	Fallback      bool                    // AssistantText is the canned fallback reply
	Degraded      bool                    // reply is text only because synthesis failed
	Err           error                   // cause of an errored or degraded turn, or a persist failure
	Duration      time.Duration
}

// Config holds orchestrator settings.
type Config struct {
	Language string // default language when neither caller nor transcript give one
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Events   EventSink // optional
}

// Orchestrator runs the turns of one session. Turns must not overlap;
// the session manager serializes them.
type Orchestrator struct {
	sessionId   string
	transcriber Transcriber
	responder   Responder
	speaker     Speaker
	ids         *TurnIDGenerator
	cfg         Config
	log         zerolog.Logger
}

// NewOrchestrator wires the three stages for one session.
func NewOrchestrator(sessionId string, transcriber Transcriber, responder Responder, speaker Speaker, cfg Config) *Orchestrator {
	return &Orchestrator{
		sessionId:   sessionId,
		transcriber: transcriber,
		responder:   responder,
		speaker:     speaker,
		ids:         NewTurnIDGenerator(),
		cfg:         cfg,
		log:         logging.WithSession(logging.WithComponent(cfg.Logger, "orchestrator"), sessionId),
	}
}

// SessionId returns the session the orchestrator belongs to.
func (o *Orchestrator) SessionId() string {
	return o.sessionId
}

// HandleTurn runs src through transcription, generation and synthesis.
//
// A transcription failure or an empty transcript ends the turn in ERRORED
// and returns an error wrapping ErrCouldNotHear; no reply is generated and
// the history is untouched. Generation failures are masked by the
// generator's fallback reply. A synthesis failure still ends in DONE with
// a text-only (degraded) result.
func (o *Orchestrator) HandleTurn(ctx context.Context, src audio.Source, opts TurnOptions) (*TurnResult, error) {
	start := time.Now()
	lc := NewTurnLifecycle(o.ids.Next(o.sessionId))
	log := logging.WithTurn(o.cfg.Logger, o.sessionId, lc.TurnId()).With().Str("component", "orchestrator").Logger()
	res := &TurnResult{TurnID: lc.TurnId()}

	lang := opts.Language
	if lang == "" {
		lang = o.cfg.Language
	}

	// LISTENING → TRANSCRIBING
	o.advance(lc, StateTranscribing)
	log.Info().Str("source", src.String()).Msg("Transcribing turn audio")

	transcript, err := o.transcriber.Transcribe(ctx, src, lang)
	if err == nil && strings.TrimSpace(transcript.Text) == "" {
		err = ErrEmptyTranscript
	}
	if err != nil {
		lc.Fail()
		res.State = lc.State()
		res.Transcript = transcript
		res.Err = fmt.Errorf("%w: %w", ErrCouldNotHear, err)
		res.Duration = time.Since(start)
		log.Warn().Err(err).Msg("Turn errored: could not hear the caller")
		o.finish(ctx, res, StageTranscription)
		return res, res.Err
	}
	res.Transcript = transcript
	res.UserText = transcript.Text

	// TRANSCRIBING → GENERATING
	o.advance(lc, StateGenerating)
	reply := o.responder.Generate(ctx, transcript.Text, opts.UseHistory)
	res.AssistantText = reply.Text
	res.Fallback = reply.Fallback
	if reply.Fallback {
		log.Warn().Err(reply.Err).Msg("Using fallback reply")
	}

	// GENERATING → SYNTHESIZING
	o.advance(lc, StateSynthesizing)
	synthLang := opts.Language
	if synthLang == "" {
		synthLang = baseLanguage(transcript.Language)
	}
	if synthLang == "" {
		synthLang = o.cfg.Language
	}
	result, err := o.speaker.Synthesize(ctx, reply.Text, synthLang, opts.OutputPath)
	res.Audio = result
	if err != nil {
		res.Err = err
		var perr *tts.PersistError
		if errors.As(err, &perr) && result != nil {
			log.Warn().Err(err).Msg("Reply audio not saved")
		} else {
			res.Audio = nil
			res.Degraded = true
			log.Warn().Err(err).Msg("Synthesis failed, returning text-only turn")
		}
	}

	// SYNTHESIZING → DONE
	o.advance(lc, StateDone)
	res.State = lc.State()
	res.Duration = time.Since(start)

	log.Info().
		Bool("fallback", res.Fallback).
		Bool("degraded", res.Degraded).
		Dur("duration", res.Duration).
		Msg("Turn complete")
	o.finish(ctx, res, "")
	return res, nil
}

// advance applies a transition that HandleTurn's sequencing guarantees valid.
func (o *Orchestrator) advance(lc *TurnLifecycle, to State) {
	if err := lc.Advance(to); err != nil {
		o.log.Error().Err(err).Str("turnId", lc.TurnId()).Msg("Unexpected turn transition")
	}
}

// finish records metrics and publishes the turn event.
func (o *Orchestrator) finish(ctx context.Context, res *TurnResult, failedStage string) {
	if o.cfg.Metrics != nil {
		outcome := "done"
		switch {
		case res.State == StateErrored:
			outcome = "errored"
		case res.Degraded:
			outcome = "degraded"
		}
		o.cfg.Metrics.RecordTurn(outcome, res.Duration.Seconds())
	}

	if o.cfg.Events == nil {
		return
	}

	var err error
	if res.State == StateErrored {
		err = o.cfg.Events.PublishTurnFailed(ctx, models.TurnFailed{
			EventType:   models.EventTurnFailed,
			SessionID:   o.sessionId,
			TurnID:      res.TurnID,
			Timestamp:   time.Now().UnixMilli(),
			FailedStage: failedStage,
			Error:       res.Err.Error(),
			DurationMs:  res.Duration.Milliseconds(),
		})
	} else {
		evt := models.TurnCompleted{
			EventType:     models.EventTurnCompleted,
			SessionID:     o.sessionId,
			TurnID:        res.TurnID,
			Timestamp:     time.Now().UnixMilli(),
			UserText:      res.UserText,
			AssistantText: res.AssistantText,
			Fallback:      res.Fallback,
			Degraded:      res.Degraded,
			DurationMs:    res.Duration.Milliseconds(),
		}
		if res.Transcript != nil {
			evt.Language = res.Transcript.Language
		}
		if res.Audio != nil {
			evt.AudioSeconds = res.Audio.Duration().Seconds()
		}
		if res.Err != nil {
			evt.SynthesisError = res.Err.Error()
		}
		if h, ok := o.responder.(historySizer); ok {
			evt.HistoryLength = h.HistoryLen()
		}
		err = o.cfg.Events.PublishTurnCompleted(ctx, evt)
	}
	if err != nil {
		o.log.Warn().Err(err).Str("turnId", res.TurnID).Msg("Failed to publish turn event")
	}
}

// baseLanguage reduces "it-IT" to "it".
func baseLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return code
}
