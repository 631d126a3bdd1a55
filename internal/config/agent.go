package config

import (
	"fmt"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

// Environment variable names for oracle agent overrides.
const (
	EnvAgentProviderName = "ATTEST_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "ATTEST_AGENT_BASE_URL"
	EnvAgentToken        = "ATTEST_AGENT_TOKEN"
	EnvAgentDeployment   = "ATTEST_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "ATTEST_AGENT_API_VERSION"
	EnvAgentAuthType     = "ATTEST_AGENT_AUTH_TYPE"
	EnvAgentModelName    = "ATTEST_AGENT_MODEL_NAME"
)

// AgentConfig configures the go-agents client behind the extraction
// oracle.
type AgentConfig struct {
	gaconfig.AgentConfig
}

// Merge overwrites configured fields from overlay.
func (c *AgentConfig) Merge(overlay *AgentConfig) {
	c.AgentConfig.Merge(&overlay.AgentConfig)
}

// Finalize applies go-agents defaults, environment overrides, and
// validation.
func (c *AgentConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

func (c *AgentConfig) loadDefaults() {
	defaults := gaconfig.DefaultAgentConfig()
	defaults.Merge(&c.AgentConfig)
	c.AgentConfig = defaults

	if c.Name == "" {
		c.Name = "attest-oracle"
	}
}

func (c *AgentConfig) loadEnv() {
	if c.Provider == nil {
		c.Provider = &gaconfig.ProviderConfig{}
	}
	if c.Provider.Options == nil {
		c.Provider.Options = make(map[string]any)
	}
	if c.Model == nil {
		c.Model = &gaconfig.ModelConfig{}
	}
	if v := os.Getenv(EnvAgentProviderName); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv(EnvAgentBaseURL); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv(EnvAgentModelName); v != "" {
		c.Model.Name = v
	}

	setOption := func(envVar, key string) {
		if v := os.Getenv(envVar); v != "" {
			c.Provider.Options[key] = v
		}
	}

	setOption(EnvAgentToken, "token")
	setOption(EnvAgentDeployment, "deployment")
	setOption(EnvAgentAPIVersion, "api_version")
	setOption(EnvAgentAuthType, "auth_type")
}

func (c *AgentConfig) validate() error {
	if c.Name == "" {
		return fmt.Errorf("name required")
	}
	if c.Provider == nil {
		return fmt.Errorf("provider required")
	}
	if c.Provider.Name == "" {
		return fmt.Errorf("provider name required")
	}
	if c.Model == nil {
		return fmt.Errorf("model required")
	}
	return nil
}
