package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string              `mapstructure:"port"`
	AIBackend           string              `mapstructure:"ai_backend"` // "openai" or "gemini"
	AIEndpoint          string              `mapstructure:"ai_endpoint"`
	Model               string              `mapstructure:"model"`
	OpenAIAPIKey        string              `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKeys       string              `mapstructure:"GEMINI_API_KEYS"` // comma separated
	MongoURI            string              `mapstructure:"MONGODB_URI"`
	MongoDatabase       string              `mapstructure:"mongo_database"`
	UploadDir           string              `mapstructure:"upload_dir"`
	Agent               AgentConfig         `mapstructure:"agent"`
	WebSearch           WebSearchConfig     `mapstructure:"web_search"`
	WeaviateStoreConfig WeaviateStoreConfig `mapstructure:"weaviate_store_config"`
}

type AgentConfig struct {
	MaxToolRounds int    `mapstructure:"max_tool_rounds"`
	TimeoutSecs   int    `mapstructure:"timeout_secs"`
	SystemPrompt  string `mapstructure:"system_prompt"`
}

type WebSearchConfig struct {
	APIKey   string `mapstructure:"GOOGLE_SEARCH_API_KEY"`
	EngineID string `mapstructure:"google_search_engine_id"`
}

type WeaviateStoreConfig struct {
	Host         string       `mapstructure:"host"`
	APIKey       string       `mapstructure:"WEAVIATE_APIKEY"`
	Text2Vec     string       `mapstructure:"text2vec"`
	ModuleConfig ModuleConfig `mapstructure:"module_config"`
}

type ModuleConfig map[string]interface{}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Bind environment variables
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("GEMINI_API_KEYS")
	v.BindEnv("WEAVIATE_APIKEY")
	v.BindEnv("MONGODB_URI")
	v.BindEnv("GOOGLE_SEARCH_API_KEY")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Agent.MaxToolRounds <= 0 {
		config.Agent.MaxToolRounds = 5
	}
	if config.Agent.TimeoutSecs <= 0 {
		config.Agent.TimeoutSecs = 120
	}
	return &config, nil
}

func (c *Config) GeminiKeys() []string {
	if c.GeminiAPIKeys == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(c.GeminiAPIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
