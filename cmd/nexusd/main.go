// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// nexusd serves the voice-turn orchestration engine: the telephony
// provider's per-turn webhook, the background job delivery endpoint, and
// the number provisioning API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
	twilio "github.com/twilio/twilio-go"
	"go.uber.org/zap"

	"github.com/Benrobo/nexusai-sub001/blob"
	"github.com/Benrobo/nexusai-sub001/config"
	"github.com/Benrobo/nexusai-sub001/directory"
	"github.com/Benrobo/nexusai-sub001/dispatch"
	"github.com/Benrobo/nexusai-sub001/engine"
	"github.com/Benrobo/nexusai-sub001/intent"
	"github.com/Benrobo/nexusai-sub001/kv"
	"github.com/Benrobo/nexusai-sub001/model"
	"github.com/Benrobo/nexusai-sub001/notify"
	"github.com/Benrobo/nexusai-sub001/phrase"
	"github.com/Benrobo/nexusai-sub001/provision"
	"github.com/Benrobo/nexusai-sub001/session"
	"github.com/Benrobo/nexusai-sub001/synth"
	"github.com/Benrobo/nexusai-sub001/webhook"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "nexusd.yaml", "path to the config file")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("loading config", zap.Error(err))
	}

	srv := buildServer(cfg, log)

	go func() {
		log.Info("nexusd listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
}

func buildServer(cfg *config.Config, log *zap.Logger) *http.Server {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := kv.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("connecting to redis", zap.Error(err))
	}

	blobs, err := blob.NewS3Store(blob.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		log.Fatal("connecting to blob storage", zap.Error(err))
	}

	synthOpts := []synth.ElevenLabsOption{synth.WithTimeout(cfg.Synthesis.Timeout())}
	if cfg.Synthesis.ModelID != "" {
		synthOpts = append(synthOpts, synth.WithModelID(cfg.Synthesis.ModelID))
	}
	synthesizer := synth.NewElevenLabsClient(cfg.Synthesis.APIKey, synthOpts...)
	phrases := phrase.NewResolver(store, blobs, synthesizer, log)

	classifier := intent.NewClassifier(
		openai.NewClient(cfg.Intent.APIKey),
		intent.WithModel(cfg.Intent.Model),
		intent.WithTimeout(cfg.Intent.Timeout()),
	)

	sessions := session.NewStore(store, log,
		session.WithTTL(cfg.Session.TTL()),
		session.WithLockTTL(cfg.Session.LockTTL()),
	)

	agents := directory.NewHTTPLookup(cfg.Directory.BaseURL, cfg.Directory.APIKey)
	mailer := notify.NewResendMailer(cfg.Mail.APIKey, cfg.Mail.From)

	voices := make(map[model.AgentType]string, len(cfg.Voice.Voices))
	for agentType, voice := range cfg.Voice.Voices {
		voices[model.AgentType(agentType)] = voice
	}
	voiceURL := cfg.PublicURL + "/api/voice/incoming"
	render := &engine.Renderer{
		GatherAction:   voiceURL,
		HandoverNumber: cfg.Voice.HandoverNumber,
		FallbackAudio:  cfg.Voice.FallbackAudioURL,
	}

	eng := engine.New(sessions, agents, classifier, phrases, render, log,
		engine.WithTurnTimeout(cfg.Voice.TurnTimeout()),
		engine.WithVoices(voices, cfg.Voice.DefaultVoice),
	)

	twilioClient := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.Twilio.AccountSID,
		Password: cfg.Twilio.AuthToken,
	})
	provisioner := provision.NewService(twilioClient.Api, voiceURL, cfg.Retry.Attempts, mailer, log)
	texter := notify.NewTwilioTexter(twilioClient.Api, cfg.Twilio.FromNumber)

	jobs := dispatch.NewDispatcher(log)
	jobs.Register(model.JobProvisionNumber, provisioner.JobHandler())
	jobs.Register(model.JobSendMail, notify.MailJobHandler(mailer))
	jobs.Register(model.JobSendSMS, notify.SMSJobHandler(texter))

	publisher := dispatch.NewQueuePublisher(cfg.Queue.Endpoint, cfg.Queue.Token,
		cfg.PublicURL+"/api/jobs/process")

	limiter := webhook.NewRateLimiter(store, cfg.RateLimit.Window(), cfg.RateLimit.MaxRequests)
	server := webhook.NewServer(eng, jobs, publisher, limiter, render, log)
	server.SetQueueDelay(cfg.Queue.DelaySeconds)

	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
