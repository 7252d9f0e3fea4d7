// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the contentforge CLI.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/contentforge/internal/logging"
	"github.com/pdiddy/contentforge/internal/secrets"
	"github.com/pdiddy/contentforge/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the resolved configuration: defaults, then the config file,
	// then CONTENTFORGE_* variables, then flags, then .secrets/.
	cfg types.Config

	logger = zap.NewNop()
)

// rootCmd is the base command for the contentforge CLI.
var rootCmd = &cobra.Command{
	Use:   "contentforge",
	Short: "Research-grounded content generation",
	Long: `contentforge turns a short request into a cited document. A planner splits
the request into sections, each section is researched against the indexed
corpus and drafted from what was found, and the results are assembled,
edited, and given a reference list.

Index source documents with "index", generate with "generate", inspect
retrieval with "research", deliver with "publish", or run the HTTP API
with "serve".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("decoding config: %w", err)
		}
		l, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		logger = l

		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(secretsDir, logger)
		if err != nil {
			return err
		}
		secrets.Apply(&cfg, s)
		if len(s) > 0 {
			logger.Debug("loaded secrets", zap.Strings("keys", secrets.Names(s)))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./contentforge.yaml or ~/.config/contentforge/config.yaml)")
	pf.String("secrets-dir", ".secrets/", "directory of secret files")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")
	for key, flag := range map[string]string{"log.level": "log-level", "log.format": "log-format"} {
		if err := viper.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func initConfig() {
	// Seeding every key from the defaults lets env variables override keys
	// that the config file never mentions.
	viper.SetConfigType("yaml")
	defaults, err := yaml.Marshal(types.DefaultConfig())
	if err == nil {
		err = viper.ReadConfig(bytes.NewReader(defaults))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not load default config:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("contentforge")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "contentforge"))
		}
	}

	viper.SetEnvPrefix("CONTENTFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range []string{"ai.api_key", "ai.base_url", "publish.client_secret", "search.redis_url"} {
		_ = viper.BindEnv(key)
	}

	if err := viper.MergeInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "warning: could not read config:", err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
