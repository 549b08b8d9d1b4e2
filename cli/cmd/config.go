package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
	Long:  `Inspect the effective configuration merged from the config file, environment variables and flags.`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View current configuration",
	RunE:  runConfigView,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long:  `Get a configuration value. The key uses dot notation (e.g. store.type).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configGetCmd)

	configViewCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml", "output format (yaml, json, table)")
}

func runConfigView(cmd *cobra.Command, args []string) error {
	settings := redactedSettings()

	switch configFormat {
	case "yaml":
		data, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(data))
		return nil

	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(settings)

	case "table":
		flat := make(map[string]interface{})
		flattenSettings("", settings, flat)

		keys := make([]string, 0, len(flat))
		for k := range flat {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "KEY\tVALUE\n")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%v\n", k, flat[k])
		}
		return w.Flush()

	default:
		return fmt.Errorf("unsupported format: %s", configFormat)
	}
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !viper.IsSet(key) {
		return fmt.Errorf("configuration key not found: %s", key)
	}

	fmt.Printf("%s = %v\n", key, viper.Get(key))
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Printf("Source: %s\n", configFile)
	} else {
		fmt.Println("Source: defaults/environment/flags")
	}
	return nil
}

// redactedSettings returns the effective settings with credentials masked.
func redactedSettings() map[string]interface{} {
	settings := viper.AllSettings()
	if store, ok := settings["store"].(map[string]interface{}); ok {
		if _, set := store["passphrase"]; set && store["passphrase"] != "" {
			store["passphrase"] = "********"
		}
		if s3, ok := store["s3"].(map[string]interface{}); ok {
			if _, set := s3["secret_access_key"]; set && s3["secret_access_key"] != "" {
				s3["secret_access_key"] = "********"
			}
		}
	}
	return settings
}

func flattenSettings(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flattenSettings(key, nested, out)
			continue
		}
		out[key] = v
	}
}
