// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package engine drives one phone call turn at a time: it owns the call
// state machine and the orchestration around it (session locking, intent
// classification, prompt audio resolution, voice document rendering).
package engine

import (
	"github.com/Benrobo/nexusai-sub001/model"
)

// ConfusedTurnLimit is how many consecutive unclassifiable turns the
// machine tolerates before handing the call to a human.
const ConfusedTurnLimit = 3

// Decide is the pure transition core. Given the current state, the
// classified intent for this turn, and the session, it returns the next
// state and the prompt to speak. Escalating intents win over everything
// else, including GOODBYE arriving in the same turn.
func Decide(state model.CallState, in model.Intent, sess *model.CallSession) (model.CallState, model.PromptKey) {
	if state.IsTerminal() {
		return state, model.PromptNone
	}

	if in.IsEscalating() {
		return model.StateEscalating, model.PromptEscalating
	}

	switch in {
	case model.IntentGoodbye:
		return model.StateTerminated, model.PromptGoodbye
	case model.IntentGreetings:
		return model.StateListening, model.PromptGreetingReply
	case model.IntentEnquiry:
		return model.StateListening, model.PromptEnquiryAck
	case model.IntentRequest:
		return model.StateListening, model.PromptRequestAck
	case model.IntentUnknown:
		if sess != nil && sess.ConfusedTurns >= ConfusedTurnLimit {
			return model.StateEscalating, model.PromptEscalating
		}
		return model.StateListening, model.PromptClarify
	}

	// An intent outside the vocabulary should have been rejected by the
	// classifier already; treat it like an unclassifiable turn.
	return model.StateListening, model.PromptClarify
}
