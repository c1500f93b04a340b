package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/teranos/promptforge/config"
	"github.com/teranos/promptforge/errors"
	"gopkg.in/yaml.v3"
)

// ConfigCmd inspects and manages PromptForge configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and manage PromptForge configuration",
	Long: `Work with the layered configuration: project promptforge.toml, user
~/.promptforge/config.toml, system /etc/promptforge/config.toml, and
environment variables.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Long:  `Print the configuration after all layers are merged. API keys are masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a single configuration value",
	Long:  `Print one value using dot notation (e.g. "database.path", "ai.execution_model").`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the resolved configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in the user config file",
	Long:  `Update a dotted key (e.g. "providers.default") in ~/.promptforge/config.toml. The previous file is kept as a rotating backup.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the user config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.UserConfigPath())
	},
}

var (
	configShowFormat string
	configInitForce  bool
)

func init() {
	configShowCmd.Flags().StringVar(&configShowFormat, "format", "toml", "Output format: toml, json, or yaml")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Replace an existing config file (old file kept as .bak)")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configSetCmd)
	ConfigCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings, err := resolvedSettings(cmd)
	if err != nil {
		return err
	}
	maskAPIKeys(settings)

	var out []byte
	switch configShowFormat {
	case "toml":
		out, err = toml.Marshal(settings)
	case "json":
		out, err = json.MarshalIndent(settings, "", "  ")
	case "yaml":
		out, err = yaml.Marshal(settings)
	default:
		return errors.Newf("unsupported format %q (supported: toml, json, yaml)", configShowFormat)
	}
	if err != nil {
		return errors.Wrap(err, "failed to render configuration")
	}

	fmt.Println(string(out))
	return nil
}

// resolvedSettings returns the merged settings map, honoring --config.
// resolvedViper returns the Viper backing this invocation, honoring the
// global --config flag over the usual discovery order.
func resolvedViper(cmd *cobra.Command) (*viper.Viper, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		config.SetDefaults(v)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
		return v, nil
	}
	return config.GetViper(), nil
}

func resolvedSettings(cmd *cobra.Command) (map[string]interface{}, error) {
	v, err := resolvedViper(cmd)
	if err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}

// maskAPIKeys replaces configured credential values so `config show`
// never prints key material.
func maskAPIKeys(settings map[string]interface{}) {
	providers, ok := settings["providers"].(map[string]interface{})
	if !ok {
		return
	}
	for _, entry := range providers {
		provider, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if key, ok := provider["api_key"].(string); ok && key != "" {
			provider["api_key"] = "********"
		}
	}
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v, err := resolvedViper(cmd)
	if err != nil {
		return err
	}
	if !v.IsSet(key) {
		return errors.Newf("configuration key %q not found", key)
	}

	fmt.Println(v.Get(key))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	pterm.Success.Println("Configuration is valid")
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if configInitForce {
		path := config.UserConfigPath()
		if path != "" {
			if _, err := os.Stat(path); err == nil {
				backup := path + ".bak"
				if err := os.Rename(path, backup); err != nil {
					return errors.Wrap(err, "failed to back up existing config")
				}
				pterm.Info.Printf("Existing config moved to %s\n", backup)
			}
		}
	}

	written, err := config.InitUserConfig()
	if err != nil {
		return err
	}

	pterm.Success.Printf("Wrote default config to %s\n", written)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if err := config.SetValue(key, parseConfigValue(args[1])); err != nil {
		return err
	}

	pterm.Success.Printf("Set %s in %s\n", key, config.UserConfigPath())
	return nil
}

// parseConfigValue keeps TOML scalar types: booleans and numbers stay
// typed, everything else is written as a string.
func parseConfigValue(raw string) interface{} {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
