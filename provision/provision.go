// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package provision purchases inbound phone numbers and points them at
// the voice webhook. Provisioning must complete before its caller gets a
// result, so it runs under the synchronous retry policy; exhausting the
// budget notifies the owning user.
package provision

import (
	"context"
	"encoding/json"
	"fmt"

	twilioopenapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/Benrobo/nexusai-sub001/dispatch"
	"github.com/Benrobo/nexusai-sub001/notify"
)

// NumberAPI is the slice of the Twilio REST client the service uses
type NumberAPI interface {
	ListAvailablePhoneNumberLocal(countryCode string, params *twilioopenapi.ListAvailablePhoneNumberLocalParams) ([]twilioopenapi.ApiV2010AvailablePhoneNumberLocal, error)
	CreateIncomingPhoneNumber(params *twilioopenapi.CreateIncomingPhoneNumberParams) (*twilioopenapi.ApiV2010IncomingPhoneNumber, error)
}

// Service provisions phone numbers
type Service struct {
	api      NumberAPI
	voiceURL string
	attempts int
	mailer   notify.Mailer
	log      *zap.Logger
}

// NewService creates a provisioning service. voiceURL is attached to each
// purchased number as its inbound voice webhook.
func NewService(api NumberAPI, voiceURL string, attempts int, mailer notify.Mailer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if attempts <= 0 {
		attempts = dispatch.DefaultAttempts
	}
	return &Service{api: api, voiceURL: voiceURL, attempts: attempts, mailer: mailer, log: log}
}

// Request describes one provisioning order
type Request struct {
	AgentID    string `json:"agent_id"`
	Country    string `json:"country"`
	AreaCode   int    `json:"area_code,omitempty"`
	OwnerEmail string `json:"owner_email"`
}

// Provision finds and purchases one local number. The synchronous retry
// budget absorbs transient provider errors; on exhaustion the owning user
// is notified and the failure is reported to the caller.
func (s *Service) Provision(ctx context.Context, req Request) (string, error) {
	if req.Country == "" {
		req.Country = "US"
	}

	policy := dispatch.RetryPolicy{
		Attempts:   s.attempts,
		Class:      dispatch.ClassProvisioning,
		OwnerEmail: req.OwnerEmail,
		Mailer:     s.mailer,
		Log:        s.log,
	}

	var purchased string
	err := policy.Do(ctx, "provision-phone-number", func(ctx context.Context) error {
		number, err := s.provisionOnce(req)
		if err != nil {
			return err
		}
		purchased = number
		return nil
	})
	if err != nil {
		return "", err
	}

	s.log.Info("provisioned phone number",
		zap.String("agent_id", req.AgentID),
		zap.String("phone_number", purchased),
	)
	return purchased, nil
}

func (s *Service) provisionOnce(req Request) (string, error) {
	listParams := &twilioopenapi.ListAvailablePhoneNumberLocalParams{}
	listParams.SetLimit(1)
	if req.AreaCode > 0 {
		listParams.SetAreaCode(req.AreaCode)
	}

	available, err := s.api.ListAvailablePhoneNumberLocal(req.Country, listParams)
	if err != nil {
		return "", fmt.Errorf("searching numbers in %s: %w", req.Country, err)
	}
	if len(available) == 0 || available[0].PhoneNumber == nil {
		return "", fmt.Errorf("no numbers available in %s", req.Country)
	}
	candidate := *available[0].PhoneNumber

	createParams := &twilioopenapi.CreateIncomingPhoneNumberParams{}
	createParams.SetPhoneNumber(candidate)
	createParams.SetVoiceUrl(s.voiceURL)
	createParams.SetVoiceMethod("POST")
	createParams.SetFriendlyName("agent " + req.AgentID)

	bought, err := s.api.CreateIncomingPhoneNumber(createParams)
	if err != nil {
		return "", fmt.Errorf("purchasing %s: %w", candidate, err)
	}
	if bought.PhoneNumber == nil {
		return "", fmt.Errorf("provider returned no number for %s", candidate)
	}
	return *bought.PhoneNumber, nil
}

// JobHandler adapts Provision for queue delivery of
// provision-phone-number jobs.
func (s *Service) JobHandler() func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			return fmt.Errorf("decoding provisioning payload: %w", err)
		}
		_, err := s.Provision(ctx, req)
		return err
	}
}
