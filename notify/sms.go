// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package notify

import (
	"context"
	"fmt"

	twilioopenapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Texter sends SMS
type Texter interface {
	Text(ctx context.Context, to, body string) error
}

// MessageAPI is the slice of the Twilio REST client the texter uses
type MessageAPI interface {
	CreateMessage(params *twilioopenapi.CreateMessageParams) (*twilioopenapi.ApiV2010Message, error)
}

// TwilioTexter implements Texter on the Twilio messaging API
type TwilioTexter struct {
	api  MessageAPI
	from string
}

// NewTwilioTexter creates a texter sending from the given number
func NewTwilioTexter(api MessageAPI, from string) *TwilioTexter {
	return &TwilioTexter{api: api, from: from}
}

// Text delivers one SMS
func (t *TwilioTexter) Text(_ context.Context, to, body string) error {
	params := &twilioopenapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	if _, err := t.api.CreateMessage(params); err != nil {
		return fmt.Errorf("sending sms to %s: %w", to, err)
	}
	return nil
}

// MockTexter records sent messages for tests
type MockTexter struct {
	// TextErr, when set, is returned by every send
	TextErr error
	Sent    []SentText
}

// SentText is one recorded SMS
type SentText struct {
	To   string
	Body string
}

// NewMockTexter creates an empty mock
func NewMockTexter() *MockTexter {
	return &MockTexter{}
}

// Text records the message
func (m *MockTexter) Text(_ context.Context, to, body string) error {
	if m.TextErr != nil {
		return m.TextErr
	}
	m.Sent = append(m.Sent, SentText{To: to, Body: body})
	return nil
}
