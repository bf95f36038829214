package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/serroba/online-board/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "board",
	Short: "Collaborative whiteboard relay and client",
	Long: `board runs the whiteboard relay and a headless client for it.
- serve: run the relay, which echoes every accepted action to all members of a board.
- boards: list, create and rename boards.
- history: print the confirmed objects and chat of a board.
- watch: open live sessions on one or more boards and report what the relay confirms.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()

	err := rootCmd.Execute()

	glog.Flush()

	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("BOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	rootCmd.PersistentFlags().String("config-dir", ".", "directory holding "+config.FileName)
	rootCmd.PersistentFlags().String("url", "", "relay base URL (overrides config)")
	rootCmd.PersistentFlags().String("email", "", "user email sent to the relay (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config-dir", rootCmd.PersistentFlags().Lookup("config-dir"))
	_ = viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	_ = viper.BindPFlag("email", rootCmd.PersistentFlags().Lookup("email"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(boardsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(watchCmd())
}

// loadConfig reads board.yml when present and applies flag and env overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("config-dir"))
	if err != nil {
		return nil, err
	}

	if url := viper.GetString("url"); url != "" {
		cfg.Client.URL = url
	}

	if email := viper.GetString("email"); email != "" {
		cfg.Client.Email = email
	}

	if natsURL := viper.GetString("nats-url"); natsURL != "" {
		cfg.NATS.URL = natsURL
	}

	if addr := viper.GetString("addr"); addr != "" {
		cfg.Relay.Addr = addr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
