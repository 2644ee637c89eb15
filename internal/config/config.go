// Package config provides the configuration schema, loader, and provider
// registry for the recall memory engine.
package config

import "time"

// Config is the root configuration structure for a recall instance.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Store     StoreConfig     `yaml:"store"`
	Budgets   BudgetsConfig   `yaml:"budgets"`
}

// ServerConfig holds process-wide runtime settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation to use for chat and
// embeddings. Each field selects a named provider registered in the [Registry].
// FallbackChat and FallbackEmbeddings are tried in order, after the primary,
// when the primary's circuit breaker trips (see [resilience.FallbackGroup]).
type ProvidersConfig struct {
	Chat               ProviderEntry   `yaml:"chat"`
	Embeddings         ProviderEntry   `yaml:"embeddings"`
	FallbackChat       []ProviderEntry `yaml:"fallback_chat"`
	FallbackEmbeddings []ProviderEntry `yaml:"fallback_embeddings"`
}

// ProviderEntry is the common configuration block shared by both provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "http").
	Name string `yaml:"name"`

	// BaseURL is the endpoint the provider POSTs requests to.
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication token sent as a bearer credential.
	APIKey string `yaml:"api_key"`

	// Model selects the model identifier sent on each request.
	Model string `yaml:"model"`

	// Timeout is the per-request timeout. Zero means the provider default.
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig configures the durable graph store and conversation-state file.
type StoreConfig struct {
	// GraphPath is the path to the SQLite graph-store file.
	GraphPath string `yaml:"graph_path"`

	// ConversationStatePath is the path to the conversation-state JSON file.
	ConversationStatePath string `yaml:"conversation_state_path"`

	// EmbeddingDimensions is the fixed vector dimension (spec mandates 1024).
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}

// BudgetsConfig holds the tunable constants from the concurrency & resource
// model. Zero fields fall back to the defaults in [Defaults].
type BudgetsConfig struct {
	MaxLayer2Turns      int           `yaml:"max_layer2_turns"`
	Layer2Timeout       time.Duration `yaml:"layer2_timeout"`
	MaxConsecutiveErrs  int           `yaml:"max_consecutive_errors"`
	MaxResultChars      int           `yaml:"max_result_chars"`
	MaxTurnsKept        int           `yaml:"max_turns_kept"`
	MaxRetries          int           `yaml:"max_retries"`
	RetryDelay          time.Duration `yaml:"retry_delay"`
	MaxInstructions     int           `yaml:"max_instructions"`
	FallbackMinTokens   int           `yaml:"fallback_min_tokens"`
	ReconcileCosineBar  float64       `yaml:"reconcile_cosine_threshold"`
	GlobalCosineBar     float64       `yaml:"global_cosine_threshold"`
	GlobalScoreFloor    float64       `yaml:"global_score_floor"`
	InstructionTiebreak float64       `yaml:"instruction_tiebreaker"`
}

// Defaults returns the budget bounds named in the concurrency & resource
// model, used to fill in any zero fields left unset by the config file.
func Defaults() BudgetsConfig {
	return BudgetsConfig{
		MaxLayer2Turns:      8,
		Layer2Timeout:       30 * time.Second,
		MaxConsecutiveErrs:  3,
		MaxResultChars:      4000,
		MaxTurnsKept:        5,
		MaxRetries:          3,
		RetryDelay:          time.Second,
		MaxInstructions:     15,
		FallbackMinTokens:   4,
		ReconcileCosineBar:  0.45,
		GlobalCosineBar:     0.15,
		GlobalScoreFloor:    0.6,
		InstructionTiebreak: 0.05,
	}
}

// applyDefaults fills zero-valued budget fields from [Defaults].
func (b *BudgetsConfig) applyDefaults() {
	d := Defaults()
	if b.MaxLayer2Turns == 0 {
		b.MaxLayer2Turns = d.MaxLayer2Turns
	}
	if b.Layer2Timeout == 0 {
		b.Layer2Timeout = d.Layer2Timeout
	}
	if b.MaxConsecutiveErrs == 0 {
		b.MaxConsecutiveErrs = d.MaxConsecutiveErrs
	}
	if b.MaxResultChars == 0 {
		b.MaxResultChars = d.MaxResultChars
	}
	if b.MaxTurnsKept == 0 {
		b.MaxTurnsKept = d.MaxTurnsKept
	}
	if b.MaxRetries == 0 {
		b.MaxRetries = d.MaxRetries
	}
	if b.RetryDelay == 0 {
		b.RetryDelay = d.RetryDelay
	}
	if b.MaxInstructions == 0 {
		b.MaxInstructions = d.MaxInstructions
	}
	if b.FallbackMinTokens == 0 {
		b.FallbackMinTokens = d.FallbackMinTokens
	}
	if b.ReconcileCosineBar == 0 {
		b.ReconcileCosineBar = d.ReconcileCosineBar
	}
	if b.GlobalCosineBar == 0 {
		b.GlobalCosineBar = d.GlobalCosineBar
	}
	if b.GlobalScoreFloor == 0 {
		b.GlobalScoreFloor = d.GlobalScoreFloor
	}
	if b.InstructionTiebreak == 0 {
		b.InstructionTiebreak = d.InstructionTiebreak
	}
}
