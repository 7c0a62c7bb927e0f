package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bonfire-gw/bonfire/internal/config"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func DefaultEnv() *cobra.Command {
	var baseConfigFile string
	var baseNonZeroOnly bool
	var defaultEnvCmd = &cobra.Command{
		Use:   "defaultenv",
		Short: "Generate full environment var list with defaults",
		Long:  `Generate full Bonfire environment var list with defaults`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := defaultEnv(cmd.OutOrStdout(), baseConfigFile, baseNonZeroOnly); err != nil {
				fmt.Printf("error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	defaultEnvCmd.Flags().StringVarP(&baseConfigFile, "base", "b", "", "path to the base config file to use")
	defaultEnvCmd.Flags().BoolVarP(&baseNonZeroOnly, "base-non-zero-only", "", false, "only output environment variables for values which were non zero in base config file")
	return defaultEnvCmd
}

func defaultEnv(w io.Writer, baseFile string, nonZeroOnly bool) error {
	conf, _, err := config.GetConfig(nil, baseFile)
	if err != nil {
		return err
	}
	if err = conf.Validate(); err != nil {
		return err
	}
	vars, err := envVars(conf, nonZeroOnly)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		_, _ = fmt.Fprintf(w, "%s=%q\n", key, vars[key])
	}
	return nil
}

// envVars flattens config into environment variables understood by config
// loader. Lists are space separated.
func envVars(conf config.Config, nonZeroOnly bool) (map[string]string, error) {
	data, err := json.Marshal(conf)
	if err != nil {
		return nil, err
	}
	vars := map[string]string{}
	var walk func(prefix string, value gjson.Result)
	walk = func(prefix string, value gjson.Result) {
		if value.IsObject() {
			value.ForEach(func(key, nested gjson.Result) bool {
				walk(joinKey(prefix, key.String()), nested)
				return true
			})
			return
		}
		var s string
		if value.IsArray() {
			var items []string
			for _, item := range value.Array() {
				items = append(items, item.String())
			}
			s = strings.Join(items, " ")
		} else {
			s = value.String()
		}
		if nonZeroOnly && isZero(s) {
			return
		}
		vars[config.EnvName(prefix)] = s
	}
	walk("", gjson.ParseBytes(data))
	return vars, nil
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func isZero(s string) bool {
	return s == "" || s == "0" || s == "false" || s == "0s"
}
