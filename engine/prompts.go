// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package engine

import (
	"github.com/Benrobo/nexusai-sub001/model"
)

// greetings vary by agent type; every other prompt is shared
var greetings = map[model.AgentType]string{
	model.AgentAntiTheft:       "Hello, you have reached the security monitoring line. How can I help you today?",
	model.AgentCustomerSupport: "Thanks for calling. I'm an automated assistant and I'm happy to help. What can I do for you?",
	model.AgentChatbot:         "Hi there! I'm a virtual assistant. What would you like to talk about?",
}

const defaultGreeting = "Hello, thanks for calling. How can I help you today?"

var promptTexts = map[model.PromptKey]string{
	model.PromptGreetingReply:   "Hello! What can I help you with?",
	model.PromptEnquiryAck:      "Good question. Let me look into that for you. Is there anything else you'd like to know?",
	model.PromptRequestAck:      "Got it, I'll take care of that for you right away. Anything else?",
	model.PromptClarify:         "Sorry, I didn't quite catch that. Could you say it again?",
	model.PromptHold:            "Please hold on for just a moment.",
	model.PromptApology:         "I'm sorry, something went wrong on our end. Please try calling again shortly.",
	model.PromptEscalating:      "Let me connect you with a member of our team. Please stay on the line.",
	model.PromptGoodbye:         "Thanks for calling. Have a great day, goodbye!",
	model.PromptPhoneNotFound:   "Sorry, this number is not set up to receive calls. Goodbye.",
	model.PromptAgentNotLinked:  "Sorry, this number hasn't been connected to an assistant yet. Please contact the business directly. Goodbye.",
	model.PromptNoKnowledgeBase: "Sorry, this assistant isn't ready to answer questions yet. Please try again later. Goodbye.",
	model.PromptAgentInactive:   "Sorry, this assistant is currently unavailable. Please try again later. Goodbye.",
}

// PromptText returns the spoken text for a prompt. The greeting is the
// only prompt that depends on which kind of agent answers the number.
func PromptText(key model.PromptKey, agent model.AgentType) string {
	if key == model.PromptGreeting {
		if text, ok := greetings[agent]; ok {
			return text
		}
		return defaultGreeting
	}
	return promptTexts[key]
}
