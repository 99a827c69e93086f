package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/longkey1/chatai/internal/chatai/config"
)

var (
	initBaseURL     string
	initCacheDriver string
	initRedisURL    string
	initLogin       bool
)

// configHeader is written above the encoded settings.
const configHeader = `# chatai configuration
#
# base_url         chat server, every endpoint lives under it (e.g. .../auth)
# request_timeout  login, directory and history calls; replies stream without a timeout
# cache_driver     none, memory or redis; the cache serves the conversation list
#                  and transcripts when the server is unreachable
# redis_url        used by the redis driver, "$VAR" values are read from the environment
# log_format       text or json, written to stderr

`

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the configuration file",
	Long: `Initialize the configuration file with default settings.
The config file will be created at $HOME/.config/chatai/config.toml by default.
You can specify a different location using the --config option.

With --login the new configuration is used to sign in right away, and the
credential is stored next to the config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		// Get home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %v", err)
		}

		// Set config file path
		configFile := filepath.Join(home, ".config", "chatai", "config.toml")
		if cfgFile != "" {
			configFile = cfgFile
		}

		// Check if config file already exists
		if _, err := os.Stat(configFile); err == nil {
			return fmt.Errorf("config file already exists at: %s", configFile)
		}

		// Create default config, overridden by the flags
		configDir := filepath.Dir(configFile)
		promptsDir := filepath.Join(configDir, "prompts")
		cfg := config.NewDefaultConfig(promptsDir)
		if initBaseURL != "" {
			cfg.BaseURL = initBaseURL
		}
		if initCacheDriver != "" {
			cfg.CacheDriver = initCacheDriver
		}
		if initRedisURL != "" {
			cfg.RedisURL = initRedisURL
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Create config directory
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %v", err)
		}

		if err := writeConfigFile(configFile, cfg); err != nil {
			return err
		}

		// Create prompts directory
		if err := os.MkdirAll(promptsDir, 0755); err != nil {
			return fmt.Errorf("failed to create prompts directory: %v", err)
		}

		fmt.Fprintf(out, "Configuration file created at: %s\n", configFile)
		fmt.Fprintf(out, "Prompts directory created at: %s\n", promptsDir)

		if !initLogin {
			fmt.Fprintln(out, "\nSign in with:\n  chatai login")
			return nil
		}

		// Switch to the new file so the credential is stored beside it
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read new config file: %v", err)
		}
		fmt.Fprintf(out, "\nSigning in to %s\n", cfg.BaseURL)
		return loginCmd.RunE(cmd, nil)
	},
}

// writeConfigFile creates path with the commented header and cfg as TOML.
func writeConfigFile(path string, cfg *config.Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %v", err)
	}
	defer f.Close()

	return encodeConfig(f, cfg)
}

func encodeConfig(w io.Writer, cfg *config.Config) error {
	if _, err := io.WriteString(w, configHeader); err != nil {
		return fmt.Errorf("failed to write config header: %v", err)
	}
	if err := toml.NewEncoder(w).Encode(cfg.File()); err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initBaseURL, "base-url", "", "Chat server URL to write instead of the default")
	initCmd.Flags().StringVar(&initCacheDriver, "cache-driver", "", "Cache driver to write (none, memory or redis)")
	initCmd.Flags().StringVar(&initRedisURL, "redis-url", "", "Redis URL for the redis cache driver")
	initCmd.Flags().BoolVar(&initLogin, "login", false, "Sign in with the new configuration")
}
