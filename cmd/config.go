package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/longkey1/chatai/internal/chatai/auth"
	"github.com/longkey1/chatai/internal/chatai/config"
)

const configFields = "configfile, base_url, request_timeout, promptdirs, cache_driver, redis_url, cache_ttl, log_level, log_format, credentials"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [field]",
	Short: "Display current configuration",
	Long: `Display the current configuration values.
This command shows all configuration values loaded from the config file and environment variables.

If a field name is specified, only that field's value is displayed.
Available fields: ` + configFields + `

Examples:
  chatai config                # Show all configuration
  chatai config base_url       # Show only the server URL
  chatai config cache_driver   # Show only the cache driver
  chatai config credentials    # Show where the credential is stored`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		credentialPath := "-"
		if store, err := auth.DefaultStore(); err == nil {
			credentialPath = store.Path()
		}

		if len(args) > 0 {
			field := strings.ToLower(args[0])
			switch field {
			case "configfile":
				fmt.Println(viper.ConfigFileUsed())
			case "base_url", "baseurl":
				fmt.Println(cfg.BaseURL)
			case "request_timeout", "requesttimeout":
				fmt.Println(cfg.RequestTimeout)
			case "promptdirs", "prompt_dirs":
				fmt.Println(strings.Join(cfg.PromptDirs, ","))
			case "cache_driver", "cachedriver":
				fmt.Println(cfg.CacheDriver)
			case "redis_url", "redisurl":
				fmt.Println(config.MaskURL(cfg.RedisURL))
			case "cache_ttl", "cachettl":
				fmt.Println(cfg.CacheTTL)
			case "log_level", "loglevel":
				fmt.Println(cfg.LogLevel)
			case "log_format", "logformat":
				fmt.Println(cfg.LogFormat)
			case "credentials":
				fmt.Println(credentialPath)
			default:
				return fmt.Errorf("unknown field: %s\nAvailable fields: %s", args[0], configFields)
			}
			return nil
		}

		fmt.Printf("ConfigFile: %s\n", viper.ConfigFileUsed())
		fmt.Printf("BaseURL: %s\n", cfg.BaseURL)
		fmt.Printf("RequestTimeout: %s\n", cfg.RequestTimeout)
		fmt.Printf("PromptDirectories: %s\n", strings.Join(cfg.PromptDirs, ","))
		fmt.Printf("CacheDriver: %s\n", cfg.CacheDriver)
		fmt.Printf("RedisURL: %s\n", config.MaskURL(cfg.RedisURL))
		fmt.Printf("CacheTTL: %s\n", cfg.CacheTTL)
		fmt.Printf("LogLevel: %s\n", cfg.LogLevel)
		fmt.Printf("LogFormat: %s\n", cfg.LogFormat)
		fmt.Printf("Credentials: %s\n", credentialPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
