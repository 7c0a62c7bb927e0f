package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bonfire-gw/bonfire/internal/config"
	"github.com/bonfire-gw/bonfire/internal/tools"

	"github.com/pelletier/go-toml/v2"
	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func DefaultConfigCommand() *cobra.Command {
	var defaultConfigFile string
	var defaultConfigCmd = &cobra.Command{
		Use:   "defaultconfig",
		Short: "Generate full configuration file with defaults",
		Long:  `Generate full Bonfire configuration file with defaults`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := defaultConfig(defaultConfigFile); err != nil {
				fmt.Printf("error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	defaultConfigCmd.Flags().StringVarP(&defaultConfigFile, "config", "c", "config.json", "path to default config file to generate")
	return defaultConfigCmd
}

var supportedExtensions = []string{"json", "toml", "yaml", "yml"}

func marshalConfig(conf config.Config, ext string) ([]byte, error) {
	switch ext {
	case "json":
		return json.MarshalIndent(conf, "", "  ")
	case "toml":
		return toml.Marshal(conf)
	case "yaml", "yml":
		return yaml.Marshal(conf)
	default:
		return nil, errors.New("output config file must have one of supported extensions: " + strings.Join(supportedExtensions, ", "))
	}
}

func defaultConfig(configFile string) error {
	if tools.FileExists(configFile) {
		return errors.New("target file already exists")
	}
	conf := config.DefaultConfig()
	if err := conf.Validate(); err != nil {
		return err
	}
	b, err := marshalConfig(conf, strings.TrimPrefix(filepath.Ext(configFile), "."))
	if err != nil {
		return err
	}
	return os.WriteFile(configFile, b, 0644)
}
