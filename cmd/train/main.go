// Command train fits a recommender model from a CSV/XLSX table or from
// generated demo data and writes the artifact served by fencerpulse.
//
//	$ train fit -data athletes.xlsx -out data/model.json
//	$ train fit -demo -balanced -rows 2400
//	$ train demo -out athletes.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gonuts/commander"

	"github.com/okian/fencerpulse/internal/adapters/dataset"
	app "github.com/okian/fencerpulse/internal/app"
	"github.com/okian/fencerpulse/internal/config"
	"github.com/okian/fencerpulse/internal/demodata"
	"github.com/okian/fencerpulse/internal/domain/model"
	"github.com/okian/fencerpulse/pkg/logger"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "train:", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		fmt.Fprintln(os.Stderr, "train:", err)
		os.Exit(1)
	}
	_ = logger.SetLevelString(cfg.LogLevel)

	if err := newCommand(cfg, os.Stdout).Dispatch(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "train:", err)
		os.Exit(1)
	}
}

// newCommand builds the command tree. Flag sets continue on error so the
// caller decides how to exit.
func newCommand(cfg *config.Config, stdout io.Writer) *commander.Command {
	return &commander.Command{
		UsageLine: "train <command> [options]",
		Short:     "train and export fencing weapon recommender models",
		Subcommands: []*commander.Command{
			fitCommand(cfg, stdout),
			demoCommand(stdout),
		},
		Flag: *flag.NewFlagSet("train", flag.ContinueOnError),
	}
}

type fitOptions struct {
	data      string
	demo      bool
	balanced  bool
	rows      int
	seed      uint64
	out       string
	exportCSV string
}

func fitCommand(cfg *config.Config, stdout io.Writer) *commander.Command {
	var o fitOptions
	cmd := &commander.Command{
		UsageLine: "fit [-data <table> | -demo] [options]",
		Short:     "fit a model and write its artifact",
		Long: `
fit trains the one-vs-rest classifier on a labelled table and saves the
artifact atomically. The table needs every attribute column plus "label".

	$ train fit -data athletes.csv -out data/model.json
`,
		Flag: *flag.NewFlagSet("fit", flag.ContinueOnError),
	}
	cmd.Flag.StringVar(&o.data, "data", "", "training table (.csv or .xlsx) with a label column")
	cmd.Flag.BoolVar(&o.demo, "demo", false, "train on generated demo athletes")
	cmd.Flag.BoolVar(&o.balanced, "balanced", false, "label demo athletes with standardised discipline scores")
	cmd.Flag.IntVar(&o.rows, "rows", demodata.DefaultRows, "demo rows to generate")
	cmd.Flag.Uint64Var(&o.seed, "seed", demodata.DefaultSeed, "demo generator seed")
	cmd.Flag.StringVar(&o.out, "out", cfg.ModelPath, "artifact path")
	cmd.Flag.StringVar(&o.exportCSV, "export-csv", "", "also write the training table to this CSV path")
	cmd.Run = func(cmd *commander.Command, _ []string) error {
		if o.demo == (o.data != "") {
			return fmt.Errorf("%w: exactly one of -data or -demo is required", errUsage)
		}
		return fit(cmd.Context(), cfg, o, stdout)
	}
	return cmd
}

func demoCommand(stdout io.Writer) *commander.Command {
	var (
		rows     int
		seed     uint64
		out      string
		balanced bool
	)
	cmd := &commander.Command{
		UsageLine: "demo -out <table> [options]",
		Short:     "write a synthetic labelled athlete table",
		Flag:      *flag.NewFlagSet("demo", flag.ContinueOnError),
	}
	cmd.Flag.IntVar(&rows, "rows", demodata.DefaultRows, "rows to generate")
	cmd.Flag.Uint64Var(&seed, "seed", demodata.DefaultSeed, "generator seed")
	cmd.Flag.StringVar(&out, "out", "", "output table (.csv or .xlsx)")
	cmd.Flag.BoolVar(&balanced, "balanced", false, "label athletes with standardised discipline scores")
	cmd.Run = func(cmd *commander.Command, _ []string) error {
		if out == "" {
			return fmt.Errorf("%w: -out is required", errUsage)
		}
		table, err := demoTable(cmd.Context(), rows, seed, balanced)
		if err != nil {
			return err
		}
		if err := dataset.WriteFile(out, table, model.Weapons); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %d rows to %s\n", table.Len(), out)
		return nil
	}
	return cmd
}

func fit(ctx context.Context, cfg *config.Config, o fitOptions, stdout io.Writer) error {
	var (
		table dataset.Table
		err   error
	)
	if o.demo {
		table, err = demoTable(ctx, o.rows, o.seed, o.balanced)
	} else {
		table, err = dataset.ReadFile(ctx, o.data, model.Weapons)
	}
	if err != nil {
		return err
	}
	if o.exportCSV != "" {
		if err := dataset.WriteFile(o.exportCSV, table, model.Weapons); err != nil {
			return err
		}
	}

	svc := app.New(
		app.WithLogger(logger.Named("train")),
		app.WithModelPath(o.out),
		app.WithTrainingParams(cfg.TrainingParams()),
	)
	report, err := svc.Train(ctx, table.Records, table.Labels)
	if err != nil {
		return err
	}

	acc, err := accuracy(svc.Model(), table)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "rows: %d\n", table.Len())
	fmt.Fprintf(stdout, "artifact: %s\n", o.out)
	for k, c := range model.Weapons {
		fmt.Fprintf(stdout, "class %s: iterations=%d converged=%t\n", c.Name, report.Iterations[k], report.Converged[k])
	}
	fmt.Fprintf(stdout, "training accuracy: %.3f\n", acc)
	if w := report.Warning(); w != nil {
		fmt.Fprintf(stdout, "warning: %v\n", w)
	}
	return nil
}

func demoTable(ctx context.Context, rows int, seed uint64, balanced bool) (dataset.Table, error) {
	opts := []demodata.Option{demodata.WithRows(rows), demodata.WithSeed(seed)}
	if balanced {
		opts = append(opts, demodata.WithBalancedLabels())
	}
	records, labels, err := demodata.NewGenerator(opts...).Generate(ctx)
	if err != nil {
		return dataset.Table{}, err
	}
	return dataset.Table{Records: records, Labels: labels}, nil
}

func accuracy(m *model.Model, t dataset.Table) (float64, error) {
	if t.Len() == 0 {
		return 0, nil
	}
	hits := 0
	for i, r := range t.Records {
		res, err := m.Predict(r)
		if err != nil {
			return 0, err
		}
		if k, _ := model.ClassIndex(m.Classes(), res.Primary.Name); k == t.Labels[i] {
			hits++
		}
	}
	return float64(hits) / float64(t.Len()), nil
}
