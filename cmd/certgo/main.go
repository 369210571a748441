// Package main provides the CertGo CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/certgo-ml/certgo/internal/config"
	"github.com/certgo-ml/certgo/internal/dataset"
	"github.com/certgo-ml/certgo/internal/loader"
	"github.com/certgo-ml/certgo/internal/solver"
	"github.com/certgo-ml/certgo/internal/verify"
)

const version = "v0.1.0-dev"

func main() {
	root := &cobra.Command{
		Use:           "certgo",
		Short:         "CertGo - certified robustness verification for neural classifiers",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.AddCommand(newVerifyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "certgo:", err)
		os.Exit(1)
	}
}

func newVerifyCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify labeled inputs against a perturbation radius",
		Long: `Verify reads a model and a CSV of labeled inputs and reports, per input,
whether the label is robust for every perturbation within the configured
inf-norm radius. The clean and pgd methods are unsound lower-bound oracles;
ibp, fastlin, milp and sdp are sound certifiers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "certgo.yaml", "path to the run configuration file")
	return cmd
}

func runVerify(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck // stderr sync failure is harmless

	model, err := loader.Load(cfg.Model)
	if err != nil {
		return err
	}
	shape, err := dataset.InputShape(cfg.Dataset)
	if err != nil {
		return err
	}
	examples, err := dataset.LoadCSV(cfg.Inputs, shape, cfg.MaxInputs)
	if err != nil {
		return err
	}

	timeLimit, err := cfg.SolverTimeLimit()
	if err != nil {
		return err
	}
	adaptor, err := verify.New(verify.Method(cfg.Method), cfg.Dataset, model,
		verify.WithLogger(log),
		verify.WithSolverOptions(solver.Options{TimeLimit: timeLimit, Verbose: cfg.Solver.Verbose}),
	)
	if err != nil {
		return err
	}

	robust := 0
	for i, ex := range examples {
		verdict, err := adaptor.Verify(ex.Input, ex.Label, verify.Norm(cfg.Norm), cfg.Radius)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		if verdict {
			robust++
		}
		fmt.Printf("input %d\tlabel %d\trobust %t\n", i, ex.Label, verdict)
	}
	fmt.Printf("verified %d/%d at radius %g (%s)\n", robust, len(examples), cfg.Radius, cfg.Method)
	if m := verify.Method(cfg.Method); m == verify.MethodClean || m == verify.MethodPGD {
		fmt.Println("note: method is an unsound lower-bound oracle; verdicts are not certificates")
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		var err error
		lvl, err = zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("bad log level %q: %w", level, err)
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
