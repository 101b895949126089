// Package cli implements the toporag command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the toporag release, overridden at build time
var Version = "v0.3.0"

var (
	cfgFile string
	envFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "toporag",
	Short: "toporag - Toponym disambiguation against a GeoNames gazetteer",
	Long: `toporag links place-name mentions in documents to real-world places.

For every toponym it clusters the mentions by their co-occurring place
names, retrieves candidates from a GeoNames gazetteer (Neo4j or a static
file), asks a language model to pick the referent of each cluster, and
accepts the pick only when the reported confidence clears the configured
minimum and the choice is geographically coherent with its neighbours.

Every toponym gets exactly one result. When nothing can be selected the
result says why.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("toporag %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.toporag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	// A missing dotenv file is normal; existing environment wins
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) && verbose {
		fmt.Fprintf(os.Stderr, "Ignoring %s: %v\n", envFile, err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
		} else {
			viper.AddConfigPath(filepath.Join(home, ".toporag"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	bindEnvironment(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}

	slog.SetDefault(newLogger(verbose))
}

// newLogger builds the stderr text logger shared by every component
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
