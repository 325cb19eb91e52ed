// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

func initConfig() {
	// A missing .env is normal; anything else is reported once config loads.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-podcast")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-podcast"))
		}
	}

	viper.SetEnvPrefix("PAPER_PODCAST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := registerDefaults(viper.GetViper(), types.DefaultConfig()); err != nil {
		fmt.Fprintln(os.Stderr, "warning: registering defaults:", err)
	}
}

// loadConfig reads the config file, if any, and decodes every source into a
// Config.
func loadConfig() (types.Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("reading config: %w", err)
		}
	}
	var c types.Config
	if err := viper.Unmarshal(&c); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

// registerDefaults sets a viper default for every leaf of def, so each key
// can be overridden from the environment as well as the config file.
func registerDefaults(v *viper.Viper, def types.Config) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	setDefaults(v, "", tree)
	// Keys the defaults omit when empty.
	for _, k := range optionalKeys {
		v.SetDefault(k, "")
	}
	return nil
}

var optionalKeys = []string{
	"log.file",
	"generation.api_key",
	"generation.base_url",
	"synthesis.api_key",
	"synthesis.base_url",
	"search.semantic_scholar_api_key",
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}
