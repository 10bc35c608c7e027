package review

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
)

// Config is the orchestrator's configuration surface, read from the
// environment with the SCIJUDGE prefix.
//
// Thresholds are read at submission and aggregation time, not frozen
// into persisted jobs: changing MIN_FINAL_REVIEWS applies to every
// subsequent finalization check, including jobs already in flight.
type Config struct {
	// MinFinalReviews is the number of independent completed reviews
	// required before a paper's verdict becomes final.
	MinFinalReviews int `envconfig:"MIN_FINAL_REVIEWS" default:"5"`

	// MaxAdditionalReviews caps the runs requestable in one submission.
	MaxAdditionalReviews int `envconfig:"MAX_ADDITIONAL_REVIEWS" default:"5"`

	// MaxRunsPerJob is the hard cap on requested runs per job.
	MaxRunsPerJob int `envconfig:"MAX_RUNS_PER_JOB" default:"6"`

	// LockAfterFinal rejects new review submissions once a paper is
	// final, unless the submission carries an explicit force override.
	LockAfterFinal bool `envconfig:"LOCK_AFTER_FINAL" default:"true"`

	// RunFailureTolerance is the number of fatal run failures a job
	// absorbs before transitioning to error. Tolerated failures get a
	// replacement run so the job can still complete all requested runs.
	RunFailureTolerance int `envconfig:"RUN_FAILURE_TOLERANCE" default:"0"`

	// ModelsConfig optionally points at a JSON file of per-role model
	// configurations (see LoadRoleConfigs).
	ModelsConfig string `envconfig:"MODELS_CONFIG"`
}

// LoadConfig reads configuration from SCIJUDGE_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("SCIJUDGE", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfig returns the configuration with all defaults applied,
// bypassing the environment. Used by tests.
func DefaultConfig() Config {
	return Config{
		MinFinalReviews:      5,
		MaxAdditionalReviews: 5,
		MaxRunsPerJob:        6,
		LockAfterFinal:       true,
		RunFailureTolerance:  0,
	}
}

// Validate checks the configuration for internally consistent values.
func (c Config) Validate() error {
	if c.MinFinalReviews < 1 {
		return &ValidationError{Field: "MinFinalReviews", Reason: "must be at least 1"}
	}
	if c.MaxRunsPerJob < 1 {
		return &ValidationError{Field: "MaxRunsPerJob", Reason: "must be at least 1"}
	}
	if c.MaxAdditionalReviews < 1 {
		return &ValidationError{Field: "MaxAdditionalReviews", Reason: "must be at least 1"}
	}
	if c.RunFailureTolerance < 0 {
		return &ValidationError{Field: "RunFailureTolerance", Reason: "must not be negative"}
	}
	return nil
}

// LoadRoleConfigs reads per-role model configurations from the JSON
// file at path. The file maps role names to RoleConfig:
//
//	{
//	  "moderator": {"provider": "anthropic", "model": "claude-sonnet-4-20250514", "temperature": 0.2, "max_tokens": 2048},
//	  "skeptic":   {"provider": "openai", "model": "gpt-4o", "temperature": 0.7, "max_tokens": 1024}
//	}
//
// Roles absent from the file keep DefaultRoleConfigs values. Unknown
// role names are rejected so a typo cannot silently drop a participant's
// configuration.
func LoadRoleConfigs(path string) (map[Role]RoleConfig, error) {
	configs := DefaultRoleConfigs()

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read models config: %w", err)
	}

	var raw map[string]RoleConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse models config: %w", err)
	}

	for name, cfg := range raw {
		role := Role(name)
		if !knownRole(role) {
			return nil, &ValidationError{Field: "models config", Reason: fmt.Sprintf("unknown role %q", name)}
		}
		configs[role] = cfg
	}
	return configs, nil
}

// DefaultRoleConfigs returns the built-in per-role sampling defaults.
// The skeptic and paradigm challenger sample hotter than the
// assessment roles; the moderator stays near-deterministic so framing
// and synthesis are stable across runs.
func DefaultRoleConfigs() map[Role]RoleConfig {
	return map[Role]RoleConfig{
		RoleModerator:          {Temperature: 0.2, MaxTokens: 2048},
		RoleMethodologist:      {Temperature: 0.4, MaxTokens: 1024},
		RoleEvidenceAuditor:    {Temperature: 0.4, MaxTokens: 1024},
		RoleParadigmChallenger: {Temperature: 0.8, MaxTokens: 1024},
		RoleSkeptic:            {Temperature: 0.7, MaxTokens: 1024},
		RoleIncentivesAnalyst:  {Temperature: 0.4, MaxTokens: 1024},
	}
}

func knownRole(r Role) bool {
	for _, role := range AllRoles {
		if role == r {
			return true
		}
	}
	return false
}
