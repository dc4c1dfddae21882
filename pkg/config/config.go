package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Server holds the broker HTTP listener configuration.
type Server struct {
	ListenAddress  string   `yaml:"listenAddress"`
	TLSCertFile    string   `yaml:"tlsCertFile"`
	TLSKeyFile     string   `yaml:"tlsKeyFile"`
	TrustedProxies []string `yaml:"trustedProxies"` // IPs/CIDRs to trust for X-Forwarded-For headers
}

// Frontend configures the operator console served by the broker.
type Frontend struct {
	BaseURL string `yaml:"baseURL"`
	// BrandingName optionally overrides the product name shown in the
	// operator console and in notification mails.
	BrandingName string `yaml:"brandingName"`
	// StaticDir is the directory holding the built operator console assets.
	StaticDir string `yaml:"staticDir"`
}

// Broker configures escalation normalization and display behavior.
type Broker struct {
	// Categories is the set of recognized decision types. Escalations with an
	// unrecognized category are normalized to DefaultCategory, never rejected.
	Categories      []string `yaml:"categories"`
	DefaultCategory string   `yaml:"defaultCategory"`
	// DefaultUrgency is applied when the agent supplies an urgency outside
	// {critical, high, medium, low}.
	DefaultUrgency string `yaml:"defaultUrgency"`
}

// Filler configures the stall-content scheduler driven by the agent
// coordinator while an escalation is pending.
type Filler struct {
	InitialDelayMs int `yaml:"initialDelayMs"`
	MinIntervalMs  int `yaml:"minIntervalMs"`
	MaxIntervalMs  int `yaml:"maxIntervalMs"`
	// MaxMessages bounds how many filler utterances a single escalation may
	// produce so the agent does not dominate the conversation.
	MaxMessages int `yaml:"maxMessages"`
}

// Persona shapes the instructions handed to the conversation model. Empty
// fields fall back to generic assistant defaults.
type Persona struct {
	Name        string `yaml:"name"`
	Role        string `yaml:"role"`
	Personality string `yaml:"personality"`
	// Instructions is the agent's main briefing. AuthorityLimits and
	// EscalationTriggers are appended as separate sections.
	Instructions       string `yaml:"instructions"`
	AuthorityLimits    string `yaml:"authorityLimits"`
	EscalationTriggers string `yaml:"escalationTriggers"`
	Greeting           string `yaml:"greeting"`
}

// Agent configures the per-conversation coordinator.
type Agent struct {
	// BrokerURL is the base URL of the escalation broker API.
	BrokerURL string `yaml:"brokerURL"`
	// CooldownSeconds is the deduplication window: a second escalation raised
	// within this window of the previous one is silently suppressed.
	CooldownSeconds int     `yaml:"cooldownSeconds"`
	Filler          Filler  `yaml:"filler"`
	Persona         Persona `yaml:"persona"`
}

// Mail configures operator email notification for urgent escalations.
type Mail struct {
	Enabled            bool   `yaml:"enabled"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	SenderAddress      string `yaml:"senderAddress"`
	SenderName         string `yaml:"senderName"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	RetryCount         int    `yaml:"retryCount"`
	RetryBackoffMs     int    `yaml:"retryBackoffMs"`
	QueueSize          int    `yaml:"queueSize"`
	// OperatorAddresses receive a notification mail when an escalation with a
	// NotifyUrgencies urgency is created.
	OperatorAddresses []string `yaml:"operatorAddresses"`
	NotifyUrgencies   []string `yaml:"notifyUrgencies"`
}

// Kafka configures the audit event sink.
type Kafka struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers"`
	Topic          string   `yaml:"topic"`
	BatchSize      int      `yaml:"batchSize"`
	BatchTimeoutMs int      `yaml:"batchTimeoutMs"`
	WriteTimeoutMs int      `yaml:"writeTimeoutMs"`
	// RequiredAcks: -1 all replicas, 0 none, 1 leader only.
	RequiredAcks int  `yaml:"requiredAcks"`
	Async        bool `yaml:"async"`

	SASLMechanism string `yaml:"saslMechanism"` // "", "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"
	SASLUsername  string `yaml:"saslUsername"`
	SASLPassword  string `yaml:"saslPassword"`
}

// Audit configures the escalation audit trail.
type Audit struct {
	Kafka Kafka `yaml:"kafka"`
}

// RateLimit configures per-IP request limiting on the broker API.
type RateLimit struct {
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate"`
	Burst   int     `yaml:"burst"`
}

// Telemetry configures OpenTelemetry tracing for the broker.
type Telemetry struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Frontend  Frontend  `yaml:"frontend"`
	Broker    Broker    `yaml:"broker"`
	Agent     Agent     `yaml:"agent"`
	Mail      Mail      `yaml:"mail"`
	Audit     Audit     `yaml:"audit"`
	RateLimit RateLimit `yaml:"rateLimit"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// DefaultCategories is the decision-type set used when none is configured.
var DefaultCategories = []string{
	"authorization",
	"financial",
	"sensitive_topic",
	"user_request",
	"policy_exception",
	"custom_request",
}

// Defaults fills any unset fields with sensible defaults.
func (c *Config) Defaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}
	if len(c.Broker.Categories) == 0 {
		c.Broker.Categories = DefaultCategories
	}
	if c.Broker.DefaultCategory == "" {
		c.Broker.DefaultCategory = "user_request"
	}
	if c.Broker.DefaultUrgency == "" {
		c.Broker.DefaultUrgency = "medium"
	}
	if c.Agent.BrokerURL == "" {
		c.Agent.BrokerURL = "http://localhost:8080"
	}
	if c.Agent.CooldownSeconds <= 0 {
		c.Agent.CooldownSeconds = 30
	}
	if c.Agent.Filler.InitialDelayMs <= 0 {
		c.Agent.Filler.InitialDelayMs = 1000
	}
	if c.Agent.Filler.MinIntervalMs <= 0 {
		c.Agent.Filler.MinIntervalMs = 8000
	}
	if c.Agent.Filler.MaxIntervalMs <= c.Agent.Filler.MinIntervalMs {
		c.Agent.Filler.MaxIntervalMs = 15000
	}
	if c.Agent.Filler.MaxMessages <= 0 {
		c.Agent.Filler.MaxMessages = 3
	}
	if c.Frontend.StaticDir == "" {
		c.Frontend.StaticDir = "./frontend/dist/"
	}
	if c.Mail.RetryCount <= 0 {
		c.Mail.RetryCount = 3
	}
	if c.Mail.RetryBackoffMs <= 0 {
		c.Mail.RetryBackoffMs = 100
	}
	if c.Mail.QueueSize <= 0 {
		c.Mail.QueueSize = 100
	}
	if len(c.Mail.NotifyUrgencies) == 0 {
		c.Mail.NotifyUrgencies = []string{"critical", "high"}
	}
	if c.Audit.Kafka.BatchSize <= 0 {
		c.Audit.Kafka.BatchSize = 100
	}
	if c.Audit.Kafka.BatchTimeoutMs <= 0 {
		c.Audit.Kafka.BatchTimeoutMs = 1000
	}
	if c.Audit.Kafka.WriteTimeoutMs <= 0 {
		c.Audit.Kafka.WriteTimeoutMs = 10000
	}
	if c.RateLimit.Rate <= 0 {
		c.RateLimit.Rate = 20
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 50
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = "otlp"
	}
	if c.Telemetry.SamplingRate <= 0 {
		c.Telemetry.SamplingRate = 1.0
	}
}

// Cooldown returns the agent deduplication window as a duration.
func (a Agent) Cooldown() time.Duration {
	return time.Duration(a.CooldownSeconds) * time.Second
}

// Load loads the handoff configuration from a file path.
// If configPath is empty, defaults to "./config.yaml". The path can also be
// overridden via the HANDOFF_CONFIG_PATH environment variable.
func Load(configPath ...string) (Config, error) {
	var path string

	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	} else if env := os.Getenv("HANDOFF_CONFIG_PATH"); env != "" {
		path = env
	} else {
		path = "./config.yaml"
	}

	var config Config

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open handoff config file %s: %v", path, err)
	}

	err = yaml.Unmarshal(content, &config)
	if err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %v", path, err)
	}
	return config, nil
}
