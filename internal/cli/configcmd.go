package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/earosenfeld/clausi-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the persistent configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(config.Flags{})
		if err != nil {
			return err
		}
		shown := app.cfg
		// Key material never goes to the terminal.
		if shown.APIKeys.Anthropic != "" {
			shown.APIKeys.Anthropic = "[configured]"
		}
		if shown.APIKeys.OpenAI != "" {
			shown.APIKeys.OpenAI = "[configured]"
		}
		out, err := yaml.Marshal(&shown)
		if err != nil {
			return fmt.Errorf("render config: %w", err)
		}
		fmt.Printf("# %s\n%s", app.cfgPath, out)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration key and save the file",
	Long: `Set one configuration key and save the file.

Keys use dotted paths, for example:
  clausi config set api.url https://api.clausi.ai
  clausi config set ai.provider claude
  clausi config set report.format html
  clausi config set regulations.selected GDPR,EU-AIA`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value, err := splitSetArgs(args)
		if err != nil {
			return err
		}
		dir, err := config.Dir(flagConfigDir)
		if err != nil {
			return err
		}
		path := config.Path(dir)
		// Load the file alone so environment and flag overrides are not
		// baked into what gets written back.
		cfg, err := config.LoadOrDefault(path)
		if err != nil {
			return err
		}
		if err := cfg.Set(key, value); err != nil {
			return err
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir(flagConfigDir)
		if err != nil {
			return err
		}
		fmt.Println(config.Path(dir))
		return nil
	},
}

// splitSetArgs accepts both "key value" and "key=value".
func splitSetArgs(args []string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	key, value, found := strings.Cut(args[0], "=")
	if !found || key == "" {
		return "", "", fmt.Errorf("expected <key> <value> or <key>=<value>, got %q", args[0])
	}
	return key, value, nil
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
