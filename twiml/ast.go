// Package twiml parses voice-markup documents into a small AST covering
// the verbs the turn engine emits. It exists so the engine's output can
// be inspected structurally instead of by string matching.
package twiml

// Node is the interface for all TwiML AST nodes
type Node interface {
	isNode()
}

// Response is the root TwiML element
type Response struct {
	Children []Node
}

func (Response) isNode() {}

// Say outputs provider-side text-to-speech
type Say struct {
	Text     string
	Voice    string
	Language string
}

func (Say) isNode() {}

// Play plays an audio file
type Play struct {
	URL string
}

func (Play) isNode() {}

// Pause waits for a specified number of seconds
type Pause struct {
	Length int
}

func (Pause) isNode() {}

// Gather collects speech or DTMF input
type Gather struct {
	Input         string
	Action        string
	Method        string
	SpeechTimeout string
	Language      string
	Children      []Node // verbs executed while gathering
}

func (Gather) isNode() {}

// Dial connects the caller to another party
type Dial struct {
	Number string
	Action string
	Method string
}

func (Dial) isNode() {}

// Redirect fetches new TwiML from a URL
type Redirect struct {
	URL    string
	Method string
}

func (Redirect) isNode() {}

// Hangup ends the call
type Hangup struct{}

func (Hangup) isNode() {}
