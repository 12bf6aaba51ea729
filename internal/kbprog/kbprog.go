// Public domain.

// Package kbprog is the body of the kbpost command.
package kbprog

import (
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/soniakeys/exit"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soniakeys/kbpost/internal/config"
	"github.com/soniakeys/kbpost/internal/mcc"
	"github.com/soniakeys/kbpost/internal/pipeline"
	"github.com/soniakeys/kbpost/internal/result"
	"github.com/soniakeys/kbpost/internal/synth"
	"github.com/soniakeys/kbpost/search"
)

const versionString = "kbpost version 0.1"

// Main runs the command with the process arguments and exits nonzero on
// error.
func Main() {
	defer exit.Handler()
	if err := NewCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		exit.Log(err)
	}
}

type globalFlags struct {
	config      string
	logLevel    string
	logFormat   string
	metricsFile string
}

// NewCommand returns the root command writing results to out and logs to
// logw.
func NewCommand(out, logw io.Writer) *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "kbpost",
		Short:         "Post-process moving object search results",
		Long:          "kbpost filters light curves, validates stamps and clusters\nthe trajectory candidates of a shift and stack search.",
		Version:       versionString,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupLogging(logw, g.logLevel, g.logFormat)
		},
	}
	root.SetOut(out)
	pf := root.PersistentFlags()
	pf.StringVarP(&g.config, "config", "c", "", "YAML configuration file")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format, text or json")
	pf.StringVar(&g.metricsFile, "metrics-file", "", "write Prometheus metrics to this file")

	root.AddCommand(simulateCmd(&g), configCmd(&g))
	return root
}

// Score classifies the candidates of a synthetic search: true objects are
// in class, duplicates and noise out, and final results are predicted in.
func Score(e *synth.Engine, set *result.Set) *mcc.Confusion {
	final := map[search.Trajectory]bool{}
	for _, t := range set.Final() {
		final[t] = true
	}
	var c mcc.Confusion
	for _, cd := range e.Candidates() {
		c.Add(cd.Kind == synth.Object, final[cd.Traj])
	}
	return &c
}

// loadConfig reads the configuration named by g, or the defaults.
func loadConfig(g *globalFlags) (*config.Config, error) {
	if g.config == "" {
		return config.Default(), nil
	}
	return config.Load(g.config)
}

func simulateCmd(g *globalFlags) *cobra.Command {
	sc := synth.DefaultConfig()
	var (
		start   string
		numCore int
		lhLevel float64
		kinds   bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Post-process a synthetic search",
		Long: `simulate generates true objects, duplicate detections of them and
noise candidates, then runs the full post-processing over them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig(g)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("num-cores") {
				c.NumCores = numCore
			}
			if f.Changed("lh-level") {
				c.LHLevel = lhLevel
			}
			if sc.Start, err = time.Parse("2006-01-02", start); err != nil {
				return fmt.Errorf("start date: %w", err)
			}
			log.WithFields(log.Fields{
				"objects":    sc.Objects,
				"duplicates": sc.Duplicates,
				"noise":      sc.Noise,
				"epochs":     sc.Epochs,
				"seed":       sc.Seed,
			}).Info("generating synthetic search")
			e := synth.New(sc)
			set, sum, err := pipeline.Run(e, e.MJD(), c)
			if err != nil {
				return err
			}
			var label func(search.Trajectory) string
			if kinds {
				label = func(t search.Trajectory) string {
					k, _ := e.Kind(t)
					return k.String()
				}
			}
			out := cmd.OutOrStdout()
			Report(out, set, sum, label)
			Summarize(out, sum)
			fmt.Fprintln(out)
			Score(e, set).Fprint(out, "kbpost")
			if g.metricsFile != "" {
				if err := WriteMetrics(g.metricsFile, sum); err != nil {
					return fmt.Errorf("metrics: %w", err)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&sc.Objects, "objects", sc.Objects, "true objects")
	f.IntVar(&sc.Duplicates, "duplicates", sc.Duplicates, "duplicate detections per object")
	f.IntVar(&sc.Noise, "noise", sc.Noise, "noise candidates")
	f.IntVar(&sc.Epochs, "epochs", sc.Epochs, "epochs")
	f.Float64Var(&sc.Cadence, "cadence", sc.Cadence, "days between epochs")
	f.Uint64Var(&sc.Seed, "seed", sc.Seed, "random seed")
	f.StringVar(&start, "start", sc.Start.Format("2006-01-02"), "date of first epoch")
	f.IntVar(&numCore, "num-cores", 1, "worker goroutines, overrides num_cores")
	f.Float64Var(&lhLevel, "lh-level", 10, "likelihood level, overrides lh_level")
	f.BoolVar(&kinds, "kinds", false, "show what each result really is")
	return cmd
}

func configCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig(g)
			if err != nil {
				return err
			}
			b, err := yaml.Marshal(c)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
