// cmd/root.go
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/fleetsim/fleetsim/sim"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "fleetsim",
	Short: "Discrete-tick simulator for a disaggregated inference serving fleet",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation from a YAML configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := sim.LoadRunConfig(configPath)
		if err != nil {
			logrus.Fatalf("loading run config: %v", err)
		}

		s, err := sim.BuildSimulator(cfg)
		if err != nil {
			logrus.Fatalf("building simulator: %v", err)
		}

		logrus.Infof("starting simulation: %d devices, max_time=%d", len(s.Devices), s.MaxTime)
		s.Run()

		report := sim.BuildReport(s.Global.FinishedJobs(), s.Now())
		os.Stdout.WriteString(report.String())
		logrus.Info("simulation complete")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "path to the run's YAML configuration file")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "log level (debug, info, warn, error)")
	runCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(runCmd)
}
