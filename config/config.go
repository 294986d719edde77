// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package config handles reading nexusd's YAML configuration file.
// Credentials may also arrive via environment variables, which win over
// the file so secrets can stay out of it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for nexusd.yaml
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	// PublicURL is the externally reachable base URL the telephony
	// provider posts webhooks to.
	PublicURL string `yaml:"public_url"`

	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Intent    IntentConfig    `yaml:"intent"`
	Twilio    TwilioConfig    `yaml:"twilio"`
	Queue     QueueConfig     `yaml:"queue"`
	Mail      MailConfig      `yaml:"mail"`
	Directory DirectoryConfig `yaml:"directory"`
	Voice     VoiceConfig     `yaml:"voice"`
}

// SessionConfig controls call session lifetime and locking
type SessionConfig struct {
	TTLSeconds     int `yaml:"ttl_seconds"`      // session expiry, refreshed per turn
	LockTTLSeconds int `yaml:"lock_ttl_seconds"` // per-call advisory lock window
}

// TTL returns the session lifetime
func (c SessionConfig) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

// LockTTL returns the advisory lock window
func (c SessionConfig) LockTTL() time.Duration { return time.Duration(c.LockTTLSeconds) * time.Second }

// RateLimitConfig controls the per-IP webhook limiter
type RateLimitConfig struct {
	WindowSeconds int `yaml:"window_seconds"`
	MaxRequests   int `yaml:"max_requests"`
}

// Window returns the limiter window
func (c RateLimitConfig) Window() time.Duration { return time.Duration(c.WindowSeconds) * time.Second }

// RetryConfig controls the synchronous retry budget
type RetryConfig struct {
	Attempts int `yaml:"attempts"`
}

// RedisConfig points at the key-value store
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig points at the S3-compatible blob store for phrase audio
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// SynthesisConfig holds speech synthesis provider settings
type SynthesisConfig struct {
	APIKey         string `yaml:"api_key"`
	ModelID        string `yaml:"model_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-request synthesis deadline
func (c SynthesisConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSeconds) * time.Second }

// IntentConfig holds classification model settings
type IntentConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-request classification deadline
func (c IntentConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSeconds) * time.Second }

// TwilioConfig holds provisioning and messaging credentials
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	// FromNumber is the sender for outbound SMS
	FromNumber string `yaml:"from_number"`
}

// QueueConfig points at the delayed-job queue
type QueueConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Token        string `yaml:"token"`
	DelaySeconds int    `yaml:"delay_seconds"` // default delay before a job runs
}

// MailConfig holds the transactional mail provider key
type MailConfig struct {
	APIKey string `yaml:"api_key"`
	From   string `yaml:"from"`
}

// DirectoryConfig points at the agent/account lookup service
type DirectoryConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// VoiceConfig controls the spoken side of calls
type VoiceConfig struct {
	// Voices maps agent types to synthesis voice ids
	Voices       map[string]string `yaml:"voices"`
	DefaultVoice string            `yaml:"default_voice"`
	// HandoverNumber receives escalated calls
	HandoverNumber string `yaml:"handover_number"`
	// FallbackAudioURL is a pre-recorded phrase played when synthesis is
	// unavailable.
	FallbackAudioURL   string `yaml:"fallback_audio_url"`
	TurnTimeoutSeconds int    `yaml:"turn_timeout_seconds"`
}

// TurnTimeout returns the external-call budget for one turn
func (c VoiceConfig) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSeconds) * time.Second
}

// Load reads the config file at path, layers it over defaults, and then
// applies environment overrides. A missing file is not an error; the
// defaults plus environment must be enough for local development.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv lets credentials come from the environment
func applyEnv(cfg *Config) {
	envOverride(&cfg.Redis.Addr, "NEXUS_REDIS_ADDR")
	envOverride(&cfg.Redis.Password, "NEXUS_REDIS_PASSWORD")
	envOverride(&cfg.Storage.AccessKey, "NEXUS_STORAGE_ACCESS_KEY")
	envOverride(&cfg.Storage.SecretKey, "NEXUS_STORAGE_SECRET_KEY")
	envOverride(&cfg.Synthesis.APIKey, "ELEVENLABS_API_KEY")
	envOverride(&cfg.Intent.APIKey, "OPENAI_API_KEY")
	envOverride(&cfg.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	envOverride(&cfg.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	envOverride(&cfg.Queue.Token, "QSTASH_TOKEN")
	envOverride(&cfg.Mail.APIKey, "RESEND_API_KEY")
	envOverride(&cfg.Directory.APIKey, "NEXUS_DIRECTORY_API_KEY")
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// DefaultConfig returns a Config populated with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: ":8080",
		Session: SessionConfig{
			TTLSeconds:     1800,
			LockTTLSeconds: 5,
		},
		RateLimit: RateLimitConfig{
			WindowSeconds: 20,
			MaxRequests:   30,
		},
		Retry: RetryConfig{
			Attempts: 3,
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		Storage: StorageConfig{
			Endpoint: "127.0.0.1:9000",
			Bucket:   "nexus-phrases",
		},
		Synthesis: SynthesisConfig{
			TimeoutSeconds: 8,
		},
		Intent: IntentConfig{
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 5,
		},
		Queue: QueueConfig{
			DelaySeconds: 5,
		},
		Voice: VoiceConfig{
			DefaultVoice:       "nova",
			TurnTimeoutSeconds: 10,
		},
	}
}
