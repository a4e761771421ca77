package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/fileshare/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample fileshare configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/fileshare/config.yaml. Use --config to specify a custom
path.

Examples:
  # Initialize with default location
  fileshared init

  # Initialize with custom path
  fileshared init --config /etc/fileshare/config.yaml

  # Force overwrite existing config
  fileshared init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration file already exists: %s\nUse --force to overwrite", configPath)
	}

	if err := config.Save(config.DefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: fileshared start")
	fmt.Printf("  3. Or specify custom config: fileshared start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  The server seeds a default admin account (admin/admin) on first run.")
	fmt.Println("  Change its password before exposing the server to a network.")

	return nil
}
