package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/podassist/podassist/internal/audio"
	"github.com/podassist/podassist/internal/observability"
	"github.com/podassist/podassist/internal/stt"
)

var (
	// ErrSessionActive is returned when a session start overlaps a running one.
	ErrSessionActive = errors.New("a session is already active")

	// ErrNoSession is returned when a stop has nothing to stop.
	ErrNoSession = errors.New("no active session")

	// ErrBlankQuestion rejects questions with no content.
	ErrBlankQuestion = errors.New("question is empty")

	// ErrQuestionInFlight enforces the single-question-at-a-time rule.
	// A second question is rejected, never queued.
	ErrQuestionInFlight = errors.New("a question is already being answered")

	// ErrAnswersUnavailable means question answering was never configured.
	ErrAnswersUnavailable = errors.New("question answering is not configured")
)

// AudioSource is the session capture device.
type AudioSource interface {
	Start(deviceIndex int) error
	Stop()
	Frames() <-chan audio.Frame
	DrainFrames()
	Format() audio.Format
}

// SpeechService is the streaming transcription pipeline.
type SpeechService interface {
	Configure(settings stt.Settings, format audio.Format) error
	Start(frames <-chan audio.Frame) error
	Stop()
	Pause()
	Resume()
	Events() <-chan stt.Event
	DrainEvents()
	State() stt.State
}

// Answerer answers one question against a transcript snippet.
type Answerer interface {
	Ask(ctx context.Context, question, snippet string) (string, error)
}

// WakeListener is the hands-free trigger. Nil-able: the feature degrades
// away when unconfigured.
type WakeListener interface {
	Start() error
	Stop()
	Events() <-chan struct{}
}

// QuestionCapturer records one bounded spoken utterance.
type QuestionCapturer interface {
	Capture(ctx context.Context) (string, error)
}

// Answer is one completed question-answering exchange.
type Answer struct {
	ID       string
	Question string
	Text     string
	Err      error
	Spoken   bool
}

// Options tunes the orchestrator.
type Options struct {
	STTSettings     stt.Settings
	ContextMaxChars int
}

// Orchestrator coordinates the session lifecycle: audio capture feeding
// streaming transcription, manual and spoken questions against the
// transcript, and the wake-word trigger. It owns all cross-component
// sequencing; the UI only polls its queues.
type Orchestrator struct {
	mu     sync.Mutex
	logger zerolog.Logger

	source   AudioSource
	speech   SpeechService
	answers  Answerer
	wake     WakeListener
	capturer QuestionCapturer
	opts     Options

	sessionActive bool
	transcript    *Transcript
	intermediate  string

	askInFlight atomic.Bool
	wakeBusy    atomic.Bool

	answerQueue chan Answer
	noticeQueue chan string
}

// New wires the orchestrator. The wake listener and answer client may be nil when
// their credentials are missing; the corresponding operations return errors
// instead of panicking.
func New(source AudioSource, speech SpeechService, answers Answerer, wake WakeListener, capturer QuestionCapturer, opts Options) *Orchestrator {
	return &Orchestrator{
		logger:      observability.ComponentLogger("orchestrator"),
		source:      source,
		speech:      speech,
		answers:     answers,
		wake:        wake,
		capturer:    capturer,
		opts:        opts,
		transcript:  &Transcript{},
		answerQueue: make(chan Answer, 8),
		noticeQueue: make(chan string, 16),
	}
}

// StartSession begins capturing from the given device and transcribing it.
// The wake listener is stopped first so it starts from a known state, then
// rearmed once the pipeline is up; it only listens during a session. A
// failed start rolls the pipeline back.
func (o *Orchestrator) StartSession(deviceIndex int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sessionActive {
		return ErrSessionActive
	}

	if o.wake != nil {
		o.wake.Stop()
	}

	if err := o.source.Start(deviceIndex); err != nil {
		return fmt.Errorf("failed to start audio capture: %w", err)
	}

	if err := o.speech.Configure(o.opts.STTSettings, o.source.Format()); err != nil {
		o.source.Stop()
		o.source.DrainFrames()
		return fmt.Errorf("failed to configure transcription: %w", err)
	}
	if err := o.speech.Start(o.source.Frames()); err != nil {
		o.source.Stop()
		o.source.DrainFrames()
		return fmt.Errorf("failed to start transcription: %w", err)
	}

	o.sessionActive = true
	o.intermediate = ""
	observability.RecordSessionStart()
	o.restartWakeLocked()
	o.logger.Info().Int("device", deviceIndex).Msg("Session started")
	return nil
}

// StopSession ends the session: the capture device first so the sentinel
// lands in the queue, then transcription, then both queues drained so a
// later session starts clean. The wake listener goes quiet with the session.
func (o *Orchestrator) StopSession() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.sessionActive {
		return ErrNoSession
	}

	o.source.Stop()
	o.speech.Stop()
	o.source.DrainFrames()
	o.speech.DrainEvents()

	o.sessionActive = false
	o.intermediate = ""
	observability.RecordSessionEnd()
	if o.wake != nil {
		o.wake.Stop()
	}
	o.logger.Info().Msg("Session stopped")
	return nil
}

// restartWakeLocked puts the hands-free trigger back if it exists. Callers
// hold o.mu.
func (o *Orchestrator) restartWakeLocked() {
	if o.wake == nil {
		return
	}
	if err := o.wake.Start(); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to restart wake-word listener")
		o.notify("Wake-word listener could not be restarted")
	}
}

// SessionActive reports whether a session is running.
func (o *Orchestrator) SessionActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionActive
}

// PumpEvents drains pending transcript events into the transcript and the
// intermediate preview. The UI calls this on every poll tick; nothing else
// mutates the transcript.
func (o *Orchestrator) PumpEvents() {
	for {
		select {
		case ev := <-o.speech.Events():
			switch ev.Kind {
			case stt.KindFinal:
				o.transcript.Append(ev.Text)
				o.setIntermediate("")
			case stt.KindIntermediate:
				o.setIntermediate(ev.Text)
			case stt.KindNoMatch:
				// Silence between utterances, nothing to record.
			case stt.KindError:
				o.notify(fmt.Sprintf("Transcription error: %s", ev.Err))
			}
		default:
			o.ensureWakeArmed()
			return
		}
	}
}

// ensureWakeArmed rearms a listener that stopped itself (a detection, or an
// engine failure) once the wake flow is idle again. Start is a no-op on a
// listener that is already listening.
func (o *Orchestrator) ensureWakeArmed() {
	if o.wake == nil || o.wakeBusy.Load() || o.askInFlight.Load() {
		return
	}
	if !o.SessionActive() {
		return
	}
	if err := o.wake.Start(); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to rearm wake-word listener")
	}
}

func (o *Orchestrator) setIntermediate(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.intermediate = text
}

// Intermediate returns the latest not-yet-final transcript preview.
func (o *Orchestrator) Intermediate() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.intermediate
}

// TranscriptSnapshot returns the full transcript text.
func (o *Orchestrator) TranscriptSnapshot() string {
	return o.transcript.Snapshot()
}

// AskQuestion submits a typed question against the trailing transcript
// context. One question may be in flight at a time; a second submission is
// rejected, never queued.
func (o *Orchestrator) AskQuestion(question string) error {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return ErrBlankQuestion
	}
	return o.submit(trimmed, o.transcript.Tail(o.opts.ContextMaxChars), false)
}

// submit launches the answering goroutine. The snippet is already chosen by
// the caller: trailing context for typed questions, the verbatim wake-time
// snapshot for spoken ones.
func (o *Orchestrator) submit(question, snippet string, spoken bool) error {
	if o.answers == nil {
		return ErrAnswersUnavailable
	}
	if !o.askInFlight.CompareAndSwap(false, true) {
		return ErrQuestionInFlight
	}

	id := observability.NewQuestionID()
	o.logger.Info().Str("question_id", id).Bool("spoken", spoken).Msg("Question submitted")

	go func() {
		defer o.askInFlight.Store(false)
		text, err := o.answers.Ask(context.Background(), question, snippet)
		o.deliver(Answer{ID: id, Question: question, Text: text, Err: err, Spoken: spoken})
	}()
	return nil
}

func (o *Orchestrator) deliver(a Answer) {
	select {
	case o.answerQueue <- a:
	default:
		o.logger.Warn().Str("question_id", a.ID).Msg("Answer queue full, dropping answer")
	}
}

// HandleWake runs the hands-free question flow: pause transcription, capture
// one spoken utterance, answer it against the wake-time transcript snapshot,
// resume. Re-entrant triggers and triggers during an in-flight question are
// ignored.
func (o *Orchestrator) HandleWake() {
	if !o.SessionActive() {
		return
	}
	if o.askInFlight.Load() {
		o.logger.Info().Msg("Wake trigger ignored, question already in flight")
		return
	}
	if !o.wakeBusy.CompareAndSwap(false, true) {
		return
	}
	go o.runSpokenQuestion()
}

func (o *Orchestrator) runSpokenQuestion() {
	defer o.wakeBusy.Store(false)

	// The listener self-stops on detection, but it may have been rearmed in
	// the meantime; the microphone must be free before capture.
	if o.wake != nil {
		o.wake.Stop()
	}

	o.speech.Pause()
	// The snapshot is taken at wake time and passed verbatim, however long,
	// so the answer reflects what was playing when the user spoke up.
	snippet := o.transcript.Snapshot()

	question, err := o.capturer.Capture(context.Background())
	o.speech.Resume()

	if err != nil {
		o.logger.Warn().Err(err).Msg("Spoken question capture failed")
		switch {
		case errors.Is(err, stt.ErrCaptureTimeout):
			o.notify("Didn't catch a question in time")
		case errors.Is(err, stt.ErrNoSpeech):
			o.notify("Didn't hear a question")
		default:
			o.notify(fmt.Sprintf("Question capture failed: %s", err))
		}
		o.rearmWake()
		return
	}

	if err := o.submit(question, snippet, true); err != nil {
		o.notify(fmt.Sprintf("Could not submit question: %s", err))
	}
	o.rearmWake()
}

// rearmWake restarts the listener after a spoken-question flow, if a session
// is still running.
func (o *Orchestrator) rearmWake() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessionActive {
		o.restartWakeLocked()
	}
}

// WakeEvents exposes the listener's trigger queue for the poll loop. Nil when
// the feature is unconfigured.
func (o *Orchestrator) WakeEvents() <-chan struct{} {
	if o.wake == nil {
		return nil
	}
	return o.wake.Events()
}

// Answers returns the completed-answer queue.
func (o *Orchestrator) Answers() <-chan Answer {
	return o.answerQueue
}

// Notices returns the user-facing status message queue.
func (o *Orchestrator) Notices() <-chan string {
	return o.noticeQueue
}

// QuestionInFlight reports whether an answer is pending.
func (o *Orchestrator) QuestionInFlight() bool {
	return o.askInFlight.Load()
}

func (o *Orchestrator) notify(message string) {
	select {
	case o.noticeQueue <- message:
	default:
	}
}
