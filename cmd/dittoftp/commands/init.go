package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoftp/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample DittoFTP configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/dittoftp/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  dittoftp init

  # Initialize with custom path
  dittoftp init --config /etc/dittoftp/config.yaml

  # Force overwrite existing config
  dittoftp init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Point storage.s3 at your object store (or pick the memory backend)")
	fmt.Fprintln(out, "  2. Start the server with: dittoftp start")
	fmt.Fprintf(out, "  3. Or specify custom config: dittoftp start --config %s\n", configPath)

	return nil
}
