// Command ra-pst-scheduler allocates and schedules one or more process
// instances against a shared resource pool and writes the result as a
// schedule document (spec §6).
package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/schlixmann/ra-pst-scheduler/internal/config"
	"github.com/schlixmann/ra-pst-scheduler/pkg/cpsolver/refsolver"
	"github.com/schlixmann/ra-pst-scheduler/pkg/inputdoc"
	"github.com/schlixmann/ra-pst-scheduler/pkg/rapsterr"
	"github.com/schlixmann/ra-pst-scheduler/pkg/simulator"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	logger := logrus.New()

	rootCmd := &cobra.Command{
		Use:     "ra-pst-scheduler",
		Short:   "Allocate and schedule RA-PST process instances",
		Version: version,
	}

	var configFile string
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a scheduler config file")

	rootCmd.AddCommand(runCmd(logger, &configFile))

	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Error("command failed")
		return rapsterr.ExitCode(err)
	}
	return rapsterr.ExitSuccess
}

func runCmd(logger *logrus.Logger, configFile *string) *cobra.Command {
	var (
		inputPath  string
		outputPath string
		strategy   string
		timeLimit  float64
		sigma      int
		alpha      int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the allocation and scheduling driver over an input document",
		Example: "  ra-pst-scheduler run --input instances.json --output schedule.json --strategy HEURISTIC",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strategy") {
				cfg.Scheduler.Strategy = strategy
			}
			if cmd.Flags().Changed("time-limit") {
				cfg.Scheduler.TimeLimitSeconds = timeLimit
			}
			if cmd.Flags().Changed("sigma") {
				cfg.Scheduler.Sigma = sigma
			}
			if cmd.Flags().Changed("alpha") {
				cfg.Scheduler.Alpha = alpha
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			configureLogging(logger, cfg.Logging)

			doc, err := inputdoc.Load(inputPath)
			if err != nil {
				return err
			}

			driver := simulator.New(nil, refsolver.New(), simulator.Config{
				TimeLimitSeconds: cfg.Scheduler.TimeLimitSeconds,
				Sigma:            cfg.Scheduler.Sigma,
				Alpha:            cfg.Scheduler.Alpha,
				BreakSymmetries:  cfg.Scheduler.BreakSymmetries,
				Horizon:          cfg.Scheduler.Horizon,
			}, logger)

			strategyTag := simulator.AllocationType(cfg.Scheduler.Strategy)
			for _, inst := range doc.Instances {
				arena, err := doc.Arena(inst)
				if err != nil {
					return err
				}
				instStrategy := strategyTag
				if inst.Strategy != "" {
					instStrategy = simulator.AllocationType(inst.Strategy)
				}
				if err := driver.Enqueue(inst.ID, arena, inst.ReleaseTime, instStrategy); err != nil {
					return err
				}
			}

			if err := driver.Run(context.Background()); err != nil {
				return err
			}

			if err := driver.Document.MarshalFile(outputPath); err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{"output": outputPath, "instances": len(doc.Instances)}).Info("schedule document written")
			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "path to the input document (required)")
	cmd.Flags().StringVar(&outputPath, "output", "schedule.json", "path to write the resulting schedule document")
	cmd.Flags().StringVar(&strategy, "strategy", "", "allocation strategy, overrides config")
	cmd.Flags().Float64Var(&timeLimit, "time-limit", 0, "CP solve time limit in seconds, overrides config")
	cmd.Flags().IntVar(&sigma, "sigma", 0, "slack added to fixed intervals, overrides config")
	cmd.Flags().IntVar(&alpha, "alpha", 0, "symmetry-breaking coefficient, overrides config")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func configureLogging(logger *logrus.Logger, cfg config.LoggingConfig) {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}
}
