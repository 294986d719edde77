// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package webhook is the inbound HTTP surface: the telephony provider's
// per-turn voice webhook, the queue's job delivery endpoint, and a
// health check. Voice responses are always valid TwiML with status 200;
// the provider treats anything else as a dropped call.
package webhook

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Benrobo/nexusai-sub001/dispatch"
	"github.com/Benrobo/nexusai-sub001/engine"
	"github.com/Benrobo/nexusai-sub001/model"
	"github.com/Benrobo/nexusai-sub001/provision"
)

// TurnHandler processes one decoded voice webhook delivery
type TurnHandler interface {
	HandleTurn(ctx context.Context, req engine.TurnRequest) engine.TurnResult
}

// Server routes inbound HTTP traffic
type Server struct {
	turns   TurnHandler
	jobs    *dispatch.Dispatcher
	publish dispatch.Publisher
	limit   *RateLimiter
	render  *engine.Renderer
	log     *zap.Logger

	queueDelaySeconds int
}

// NewServer creates the webhook server. The renderer supplies the
// documents the server must answer with on its own (rate limiting,
// malformed requests) without consulting the engine.
func NewServer(turns TurnHandler, jobs *dispatch.Dispatcher, publish dispatch.Publisher, limit *RateLimiter, render *engine.Renderer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{turns: turns, jobs: jobs, publish: publish, limit: limit, render: render, log: log}
}

// SetQueueDelay sets the default delay applied to queued jobs
func (s *Server) SetQueueDelay(seconds int) {
	s.queueDelaySeconds = seconds
}

// Router builds the HTTP route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/voice/incoming", s.handleVoice).Methods(http.MethodPost)
	r.HandleFunc("/api/jobs/process", s.handleJobs).Methods(http.MethodPost)
	r.HandleFunc("/api/numbers/provision", s.handleProvision).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return r
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if s.limit != nil && !s.limit.Allow(r.Context(), ip) {
		s.log.Warn("voice webhook rate limited", zap.String("ip", ip))
		writeTwiML(w, s.render.Hold())
		return
	}

	if err := r.ParseForm(); err != nil {
		s.log.Warn("malformed voice webhook body", zap.String("ip", ip), zap.Error(err))
		writeTwiML(w, s.render.Failure())
		return
	}

	req := engine.TurnRequest{
		CallRefID:    r.PostFormValue("CallSid"),
		CallerNumber: r.PostFormValue("From"),
		CalledNumber: r.PostFormValue("To"),
		Utterance:    r.PostFormValue("SpeechResult"),
		Region: model.Region{
			Country: r.PostFormValue("CallerCountry"),
			State:   r.PostFormValue("CallerState"),
			Zip:     r.PostFormValue("CallerZip"),
		},
	}
	if req.CallRefID == "" {
		s.log.Warn("voice webhook missing CallSid", zap.String("ip", ip))
		writeTwiML(w, s.render.Failure())
		return
	}

	res := s.turns.HandleTurn(r.Context(), req)

	s.log.Info("voice turn handled",
		zap.String("call_ref", req.CallRefID),
		zap.String("state", string(res.State)),
		zap.String("ip", ip),
	)
	writeTwiML(w, res.Document)
}

// handleJobs receives a queue delivery. Non-2xx tells the queue to
// redeliver, so handler failures return 500.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	var job model.BackgroundJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		s.log.Warn("undecodable job delivery", zap.Error(err))
		http.Error(w, "bad job payload", http.StatusBadRequest)
		return
	}

	if err := s.jobs.Process(r.Context(), job); err != nil {
		http.Error(w, "job failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleProvision queues a phone-number provisioning order. The heavy
// lifting runs on the worker side when the queue delivers the job back.
func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	var order provision.Request
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		http.Error(w, "bad provisioning request", http.StatusBadRequest)
		return
	}
	if order.AgentID == "" || order.Country == "" || order.OwnerEmail == "" {
		http.Error(w, "agent_id, country and owner_email are required", http.StatusBadRequest)
		return
	}

	payload, err := json.Marshal(order)
	if err != nil {
		http.Error(w, "bad provisioning request", http.StatusBadRequest)
		return
	}
	job := model.BackgroundJob{
		ID:           model.NewJobID(),
		Type:         model.JobProvisionNumber,
		Payload:      payload,
		DelaySeconds: s.queueDelaySeconds,
	}
	if err := s.publish.Publish(r.Context(), job); err != nil {
		s.log.Error("publishing provisioning job failed",
			zap.String("agent_id", order.AgentID), zap.Error(err))
		http.Error(w, "queue unavailable", http.StatusBadGateway)
		return
	}

	s.log.Info("provisioning job queued",
		zap.String("job_id", job.ID), zap.String("agent_id", order.AgentID))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": job.ID})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
