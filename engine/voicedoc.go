// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package engine

import (
	"fmt"

	twigen "github.com/twilio/twilio-go/twiml"

	"github.com/Benrobo/nexusai-sub001/model"
)

// emergencyDocument is returned when even document generation fails. It
// must stay a hand-built constant: an unanswered or malformed webhook
// response drops the live call.
const emergencyDocument = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<Response><Say>We are sorry, something went wrong. Please call again later.</Say><Hangup/></Response>`

// Renderer builds the voice-markup documents the telephony provider
// executes. It is deliberately thin; everything it needs is decided by
// the orchestrator before rendering.
type Renderer struct {
	// GatherAction is the webhook URL the provider posts the next
	// utterance to.
	GatherAction string

	// HandoverNumber receives escalated calls. Empty means escalations
	// end with a hangup after the escalation prompt.
	HandoverNumber string

	// FallbackAudio is a pre-recorded generic phrase used when synthesis
	// is unavailable.
	FallbackAudio string
}

// Prompt plays the phrase and, when gatherNext is set, listens for the
// caller's next utterance. Without gatherNext the call ends after the
// phrase.
func (r *Renderer) Prompt(audioURL string, gatherNext bool) (string, error) {
	if !gatherNext {
		return render(
			&twigen.VoicePlay{Url: audioURL},
			&twigen.VoiceHangup{},
		)
	}
	return render(
		&twigen.VoiceGather{
			Input:         "speech",
			Action:        r.GatherAction,
			Method:        "POST",
			SpeechTimeout: "auto",
			InnerElements: []twigen.Element{
				&twigen.VoicePlay{Url: audioURL},
			},
		},
		// Gather falls through on silence; come back around rather than
		// letting the provider hang up.
		&twigen.VoiceRedirect{Url: r.GatherAction, Method: "POST"},
	)
}

// Hangup ends the call with no prompt
func (r *Renderer) Hangup() (string, error) {
	return render(&twigen.VoiceHangup{})
}

// Escalation plays the handover phrase and dials the human line
func (r *Renderer) Escalation(audioURL string) (string, error) {
	verbs := []twigen.Element{&twigen.VoicePlay{Url: audioURL}}
	if r.HandoverNumber != "" {
		verbs = append(verbs, &twigen.VoiceDial{Number: r.HandoverNumber})
	} else {
		verbs = append(verbs, &twigen.VoiceHangup{})
	}
	return render(verbs...)
}

// Hold answers a turn that lost the per-call lock. It never touches the
// phrase cache; the contending handler may be mid-write.
func (r *Renderer) Hold() string {
	doc, err := render(
		&twigen.VoiceSay{Message: PromptText(model.PromptHold, "")},
		&twigen.VoicePause{Length: "2"},
		&twigen.VoiceRedirect{Url: r.GatherAction, Method: "POST"},
	)
	if err != nil {
		return emergencyDocument
	}
	return doc
}

// Failure closes the call apologetically. Used when a turn cannot be
// processed at all; it must always produce a valid document.
func (r *Renderer) Failure() string {
	verbs := []twigen.Element{}
	if r.FallbackAudio != "" {
		verbs = append(verbs, &twigen.VoicePlay{Url: r.FallbackAudio})
	} else {
		verbs = append(verbs, &twigen.VoiceSay{Message: PromptText(model.PromptApology, "")})
	}
	verbs = append(verbs, &twigen.VoiceHangup{})
	doc, err := render(verbs...)
	if err != nil {
		return emergencyDocument
	}
	return doc
}

func render(verbs ...twigen.Element) (string, error) {
	doc, err := twigen.Voice(verbs)
	if err != nil {
		return "", fmt.Errorf("rendering voice document: %w", err)
	}
	return doc, nil
}
