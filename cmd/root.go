package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configs "github.com/evmstream/processor/configs"
	"github.com/evmstream/processor/internal/env"
	customLogger "github.com/evmstream/processor/internal/log"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "processor",
		Short: "Pipelined EVM archive data processor",
		Long:  "Pulls historical block data from an archive service, decodes it into an ordered item stream and hands it to a handler under transactional progress tracking.",
		Run: func(cmd *cobra.Command, args []string) {
			RunProcessor(cmd, args)
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yml)")
	rootCmd.PersistentFlags().String("archive-url", "", "Base URL of the archive service")
	rootCmd.PersistentFlags().String("archive-squid-id", "", "Identifier sent as the x-squid-id header")
	rootCmd.PersistentFlags().Int("archive-poll-interval-ms", 0, "Milliseconds between archive height polls")
	rootCmd.PersistentFlags().Int64("range-from-block", 0, "From which block to start processing")
	rootCmd.PersistentFlags().Int64("range-until-block", 0, "Until which block to process (0 keeps the range open)")
	rootCmd.PersistentFlags().String("chain-id", "", "Chain identifier attached to handler context and topics")
	rootCmd.PersistentFlags().String("log-level", "", "Log level to use for the application")
	rootCmd.PersistentFlags().Bool("log-prettify", false, "Whether to prettify the log output")
	rootCmd.PersistentFlags().Int("metrics-port", 0, "Prometheus listen port (0 picks an ephemeral port)")
	rootCmd.PersistentFlags().Bool("ops-enabled", false, "Toggle the health/status listener")
	rootCmd.PersistentFlags().Int("ops-port", 0, "Health/status listen port")
	rootCmd.PersistentFlags().Bool("publisher-enabled", false, "Toggle the Kafka publisher handler")
	rootCmd.PersistentFlags().String("publisher-brokers", "", "Comma-separated Kafka broker list")
	viper.BindPFlag("archive.url", rootCmd.PersistentFlags().Lookup("archive-url"))
	viper.BindPFlag("archive.squidId", rootCmd.PersistentFlags().Lookup("archive-squid-id"))
	viper.BindPFlag("archive.pollIntervalMs", rootCmd.PersistentFlags().Lookup("archive-poll-interval-ms"))
	viper.BindPFlag("range.fromBlock", rootCmd.PersistentFlags().Lookup("range-from-block"))
	viper.BindPFlag("range.untilBlock", rootCmd.PersistentFlags().Lookup("range-until-block"))
	viper.BindPFlag("chain.id", rootCmd.PersistentFlags().Lookup("chain-id"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.prettify", rootCmd.PersistentFlags().Lookup("log-prettify"))
	viper.BindPFlag("metrics.port", rootCmd.PersistentFlags().Lookup("metrics-port"))
	viper.BindPFlag("ops.enabled", rootCmd.PersistentFlags().Lookup("ops-enabled"))
	viper.BindPFlag("ops.port", rootCmd.PersistentFlags().Lookup("ops-port"))
	viper.BindPFlag("publisher.enabled", rootCmd.PersistentFlags().Lookup("publisher-enabled"))
	viper.BindPFlag("publisher.brokers", rootCmd.PersistentFlags().Lookup("publisher-brokers"))
	rootCmd.AddCommand(runCmd)
}

func initConfig() {
	env.Load()
	configs.LoadConfig(cfgFile)
	customLogger.InitLogger()
}
