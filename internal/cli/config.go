package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/toporag/internal/model"
)

// providerKeyEnv names the conventional API key variable of each hosted provider
var providerKeyEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"claude":     "ANTHROPIC_API_KEY",
}

// bindEnvironment registers every config key with viper so TOPORAG_SECTION_KEY
// variables override it, plus the conventional Neo4j and Ollama variables
func bindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix("TOPORAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range configKeys(reflect.TypeOf(model.Config{}), "") {
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv("gazetteer.uri", "TOPORAG_GAZETTEER_URI", "NEO4J_URI")
	_ = v.BindEnv("gazetteer.user", "TOPORAG_GAZETTEER_USER", "NEO4J_USER")
	_ = v.BindEnv("gazetteer.password", "TOPORAG_GAZETTEER_PASSWORD", "NEO4J_PASSWORD")
	_ = v.BindEnv("gazetteer.database", "TOPORAG_GAZETTEER_DATABASE", "NEO4J_DATABASE")
	_ = v.BindEnv("cache.redis_addr", "TOPORAG_CACHE_REDIS_ADDR", "REDIS_ADDR")
}

// configKeys lists the dotted mapstructure keys of a config struct
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() == t.PkgPath() {
			keys = append(keys, configKeys(f.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// loadConfig merges defaults, config file and environment into a validated config
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidConfig, err)
	}

	if cfg.LLM.APIKey == "" {
		if env, ok := providerKeyEnv[strings.ToLower(cfg.LLM.Provider)]; ok {
			cfg.LLM.APIKey = os.Getenv(env)
		}
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	return cfg, nil
}

// redacted returns a copy of cfg safe to print
func redacted(cfg *model.Config) *model.Config {
	out := *cfg
	if out.LLM.APIKey != "" {
		out.LLM.APIKey = "********"
	}
	if out.Gazetteer.Password != "" {
		out.Gazetteer.Password = "********"
	}
	return &out
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage toporag configuration",
	Long: `Manage toporag configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (TOPORAG_*, OPENAI_API_KEY, NEO4J_URI, ...)
3. Config file (~/.toporag/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (defaults and environment only)\n\n")
		}

		yamlData, err := yaml.Marshal(redacted(cfg))
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(yamlData))

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "\n⚠️  %v\n", err)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long:  `Create ~/.toporag/config.yaml holding every option at its default value.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := filepath.Join(home, ".toporag")
		configPath := filepath.Join(configDir, "config.yaml")

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'toporag config show' to view it, or delete it first to recreate", configPath)
		}
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		yamlData, err := yaml.Marshal(model.DefaultConfig())
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		var b strings.Builder
		b.WriteString("# toporag configuration\n")
		b.WriteString("#\n")
		b.WriteString("# Configuration hierarchy (highest to lowest priority):\n")
		b.WriteString("#   1. CLI flags\n")
		b.WriteString("#   2. Environment variables (TOPORAG_*)\n")
		b.WriteString("#   3. This config file\n")
		b.WriteString("#   4. Built-in defaults\n\n")
		b.Write(yamlData)
		b.WriteString("\n# Secrets are better kept in the environment or a .env file:\n")
		b.WriteString("#   export OPENAI_API_KEY=sk-...\n")
		b.WriteString("#   export ANTHROPIC_API_KEY=sk-ant-...\n")
		b.WriteString("#   export NEO4J_PASSWORD=...\n")

		if err := os.WriteFile(configPath, []byte(b.String()), 0o600); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the effective configuration:\n")
		fmt.Printf("  toporag config show\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
