package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/muhammetozeski/TPMPass/settings"
)

var configYAML bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Manage TPMPass settings",
	Long:        `View and change settings. Values come from the config file, TPMPASS_* environment variables and flags, in increasing priority.`,
	Annotations: map[string]string{skipVault: "true"},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	Long:  `List every setting with its type, effective value and description.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:               "get <key>",
	Short:             "Get a setting",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingNames,
	RunE:              runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a setting",
	Long: `Set a setting and save it to the config file.

Examples:
  tpmpass config set clipboard.clear_after_seconds 10
  tpmpass config set scan.parent_process true`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSettingNames,
	RunE:              runConfigSet,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configListCmd.Flags().BoolVar(&configYAML, "yaml", false, "print the effective settings as YAML")
}

func runConfigList(cmd *cobra.Command, args []string) error {
	if configYAML {
		return conf.ExportYAML(cmd.OutOrStdout())
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTYPE\tVALUE\tDEFAULT\tDESCRIPTION")
	for _, e := range conf.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Name, e.Value.Kind(), e.Value, e.Default, e.Description)
	}
	return w.Flush()
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	value, err := conf.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], value)

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		logger.Infof("source: %s", configFile)
	} else {
		logger.Infof("source: defaults/environment/flags")
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	value, err := conf.Set(args[0], args[1])
	if err != nil {
		return err
	}

	configFile := defaultConfigFile()
	if err = conf.Save(configFile); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], value)
	logger.Infof("configuration saved to %s", configFile)
	return nil
}

func completeSettingNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, d := range settings.Definitions() {
		names = append(names, d.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

