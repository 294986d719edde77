// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Benrobo/nexusai-sub001/directory"
	"github.com/Benrobo/nexusai-sub001/intent"
	"github.com/Benrobo/nexusai-sub001/model"
	"github.com/Benrobo/nexusai-sub001/session"
)

// Classifier maps a caller utterance to one of the allowed intents
type Classifier interface {
	Classify(ctx context.Context, utterance string, allowed []model.Intent) (model.Intent, error)
}

// PhraseResolver turns (speaker voice, text) into a playable audio URL
type PhraseResolver interface {
	Resolve(ctx context.Context, speakerID, text string) (string, error)
}

// TurnRequest is one inbound webhook delivery, already decoded
type TurnRequest struct {
	CallRefID    string
	CallerNumber string
	CalledNumber string
	Utterance    string
	Region       model.Region
}

// TurnResult is what goes back to the telephony provider
type TurnResult struct {
	Document string
	State    model.CallState
}

// Engine orchestrates call turns
type Engine struct {
	sessions *session.Store
	agents   directory.Lookup
	classify Classifier
	phrases  PhraseResolver
	render   *Renderer
	log      *zap.Logger

	voices       map[model.AgentType]string
	defaultVoice string
	turnTimeout  time.Duration
}

// Option configures the engine
type Option func(*Engine)

// WithTurnTimeout bounds the external-call budget for one turn. The
// provider times out hung webhooks itself; we fail first, with a valid
// document.
func WithTurnTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.turnTimeout = d
	}
}

// WithVoices maps agent types to synthesis voice ids
func WithVoices(voices map[model.AgentType]string, fallback string) Option {
	return func(e *Engine) {
		e.voices = voices
		e.defaultVoice = fallback
	}
}

// New creates the turn engine
func New(sessions *session.Store, agents directory.Lookup, classifier Classifier, phrases PhraseResolver, render *Renderer, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		sessions:     sessions,
		agents:       agents,
		classify:     classifier,
		phrases:      phrases,
		render:       render,
		log:          log,
		defaultVoice: "nova",
		turnTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleTurn processes one webhook delivery. It always returns a valid
// voice document; an error mid-turn becomes an apology, never a broken
// response.
func (e *Engine) HandleTurn(ctx context.Context, req TurnRequest) TurnResult {
	ctx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()

	log := e.log.With(zap.String("call_ref", req.CallRefID))

	release, err := e.sessions.Acquire(ctx, req.CallRefID)
	if errors.Is(err, session.ErrLockContention) {
		// Report the stored state as-is; this handler owns no transition.
		state := model.StateInit
		if sess, err := e.sessions.Load(ctx, req.CallRefID); err == nil {
			state = sess.State
		}
		log.Info("turn lost call lock, holding", zap.String("state", string(state)))
		return TurnResult{Document: e.render.Hold(), State: state}
	}
	if err != nil {
		log.Error("acquiring call lock failed", zap.Error(err))
		return TurnResult{Document: e.render.Failure(), State: model.StateFailed}
	}
	defer release()

	doc, state, err := e.handleTurn(ctx, log, req)
	if err != nil {
		log.Error("turn failed", zap.Error(err))
		return TurnResult{Document: e.render.Failure(), State: model.StateFailed}
	}
	return TurnResult{Document: doc, State: state}
}

func (e *Engine) handleTurn(ctx context.Context, log *zap.Logger, req TurnRequest) (string, model.CallState, error) {
	sess, err := e.sessions.Load(ctx, req.CallRefID)
	if errors.Is(err, session.ErrNotFound) {
		return e.startCall(ctx, log, req)
	}
	if err != nil {
		return "", model.StateFailed, err
	}
	return e.continueCall(ctx, log, req, sess)
}

// startCall handles the first webhook for a call reference id. Linkage
// problems short-circuit to an informational prompt and end the call
// without ever persisting a session.
func (e *Engine) startCall(ctx context.Context, log *zap.Logger, req TurnRequest) (string, model.CallState, error) {
	sess := e.sessions.New(req.CallRefID, model.StateGreeting)
	sess.CallerNumber = req.CallerNumber
	sess.CalledNumber = req.CalledNumber
	sess.Region = req.Region

	profile, err := e.agents.ByPhoneNumber(ctx, req.CalledNumber)
	switch {
	case errors.Is(err, directory.ErrNumberNotFound):
		return e.endCall(ctx, sess, model.PromptPhoneNotFound)
	case err != nil:
		return "", model.StateFailed, err
	case !profile.Linked:
		return e.endCall(ctx, sess, model.PromptAgentNotLinked)
	case !profile.Active:
		return e.endCall(ctx, sess, model.PromptAgentInactive)
	case !profile.HasKnowledgeBase:
		return e.endCall(ctx, sess, model.PromptNoKnowledgeBase)
	}

	sess.AgentID = profile.AgentID
	sess.AgentType = profile.AgentType

	audioURL := e.resolvePrompt(ctx, log, sess, model.PromptGreeting)
	if err := e.sessions.Save(ctx, sess); err != nil {
		return "", model.StateFailed, err
	}

	doc, err := e.render.Prompt(audioURL, true)
	if err != nil {
		return "", model.StateFailed, err
	}
	log.Info("call started",
		zap.String("agent_id", sess.AgentID),
		zap.String("agent_type", string(sess.AgentType)))
	return doc, model.StateGreeting, nil
}

// continueCall handles every turn after the greeting
func (e *Engine) continueCall(ctx context.Context, log *zap.Logger, req TurnRequest, sess *model.CallSession) (string, model.CallState, error) {
	if sess.State.IsTerminal() {
		// Stale delivery for an ended call. Nothing left to say.
		doc, err := e.render.Hangup()
		if err != nil {
			return "", sess.State, err
		}
		return doc, sess.State, nil
	}

	utterance := strings.TrimSpace(req.Utterance)
	if utterance != "" {
		sess.AppendTurn(model.SpeakerCaller, utterance)
	}
	sess.State = model.StateProcessingIntent

	in, err := e.classify.Classify(ctx, utterance, model.Vocabulary())
	switch {
	case err == nil && in != model.IntentUnknown:
		sess.ConfusedTurns = 0
		sess.Intent = in
	case err == nil || errors.Is(err, intent.ErrUnrecognizedIntent):
		sess.ConfusedTurns++
		in = model.IntentUnknown
	default:
		// The classifier already retried inline. Keep the conversation
		// alive with the canned fallback and try again next turn.
		log.Warn("classification failed, playing fallback", zap.Error(err))
		sess.State = model.StateListening
		if err := e.sessions.Save(ctx, sess); err != nil {
			return "", model.StateFailed, err
		}
		doc, err := e.render.Prompt(e.render.FallbackAudio, true)
		if err != nil {
			return "", model.StateFailed, err
		}
		return doc, model.StateListening, nil
	}

	next, key := Decide(sess.State, in, sess)
	sess.State = model.StateResponding

	audioURL := e.resolvePrompt(ctx, log, sess, key)

	switch next {
	case model.StateEscalating:
		sess.State = next
		if err := e.sessions.Delete(ctx, sess.CallRefID); err != nil {
			log.Warn("deleting session after escalation failed", zap.Error(err))
		}
		doc, err := e.render.Escalation(audioURL)
		if err != nil {
			return "", model.StateFailed, err
		}
		log.Info("call escalated", zap.Int("confused_turns", sess.ConfusedTurns))
		return doc, next, nil

	case model.StateTerminated:
		sess.State = next
		if err := e.sessions.Delete(ctx, sess.CallRefID); err != nil {
			log.Warn("deleting session after hangup failed", zap.Error(err))
		}
		doc, err := e.render.Prompt(audioURL, false)
		if err != nil {
			return "", model.StateFailed, err
		}
		return doc, next, nil

	default:
		sess.State = model.StateListening
		if err := e.sessions.Save(ctx, sess); err != nil {
			return "", model.StateFailed, err
		}
		doc, err := e.render.Prompt(audioURL, true)
		if err != nil {
			return "", model.StateFailed, err
		}
		return doc, model.StateListening, nil
	}
}

// endCall speaks one informational prompt and hangs up; the session is
// never persisted.
func (e *Engine) endCall(ctx context.Context, sess *model.CallSession, key model.PromptKey) (string, model.CallState, error) {
	sess.State = model.StateTerminated
	audioURL := e.resolvePrompt(ctx, e.log, sess, key)
	doc, err := e.render.Prompt(audioURL, false)
	if err != nil {
		return "", model.StateFailed, err
	}
	return doc, model.StateTerminated, nil
}

// resolvePrompt fetches audio for a prompt, retrying once. When both
// attempts fail the canned fallback audio keeps the call alive.
func (e *Engine) resolvePrompt(ctx context.Context, log *zap.Logger, sess *model.CallSession, key model.PromptKey) string {
	voice := e.voiceFor(sess.AgentType)
	text := PromptText(key, sess.AgentType)

	url, err := e.phrases.Resolve(ctx, voice, text)
	if err == nil {
		return url
	}
	log.Warn("phrase resolution failed, retrying", zap.String("prompt", string(key)), zap.Error(err))

	url, err = e.phrases.Resolve(ctx, voice, text)
	if err == nil {
		return url
	}
	log.Warn("phrase resolution failed twice, using fallback audio",
		zap.String("prompt", string(key)), zap.Error(err))
	return e.render.FallbackAudio
}

func (e *Engine) voiceFor(agent model.AgentType) string {
	if v, ok := e.voices[agent]; ok {
		return v
	}
	return e.defaultVoice
}
