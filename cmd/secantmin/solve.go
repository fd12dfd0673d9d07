package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	gosecant "github.com/njchilds90/gosecant"
	"github.com/njchilds90/gosecant/internal/config"
	"github.com/njchilds90/gosecant/internal/logging"
	"github.com/njchilds90/gosecant/plot"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

type solveOptions struct {
	problem gosecant.Problem
	output  string
	plot    string
}

func newSolveCommand(v *viper.Viper) *cobra.Command {
	var opts solveOptions
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Minimize one function and print the iteration trace",
		Example: `  secantmin solve --fx "16/x + 2*x**2" --a 0.5 --b 5 --tol 1e-4
  secantmin solve --fx "x**2 - 4*x" --a=-1 --b 5 --tol 1e-6 --output yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runSolve(cmd, cfg, opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.problem.Fx, "fx", "", "function of x to minimize")
	fs.Float64Var(&opts.problem.A, "a", 0, "lower bound of the bracket")
	fs.Float64Var(&opts.problem.B, "b", 0, "upper bound of the bracket")
	fs.Float64Var(&opts.problem.Tol, "tol", 0, "convergence tolerance on |f'(x)| and the bracket width")
	fs.StringVarP(&opts.output, "output", "o", outputTable, "output format: table, json or yaml")
	fs.StringVar(&opts.plot, "plot", "", "write the final graph as PNG to this file")
	_ = cmd.MarkFlagRequired("fx")
	_ = cmd.MarkFlagRequired("a")
	_ = cmd.MarkFlagRequired("b")
	_ = cmd.MarkFlagRequired("tol")
	return cmd
}

func runSolve(cmd *cobra.Command, cfg config.Config, opts solveOptions) error {
	switch opts.output {
	case outputTable, outputJSON, outputYAML:
	default:
		return fmt.Errorf("unsupported output %q (allowed: %q, %q, %q)", opts.output, outputTable, outputJSON, outputYAML)
	}

	logger := logging.FromConfig(cmd.ErrOrStderr(), cfg)
	solver := gosecant.NewSolver(gosecant.SolverConfig{
		Logger:        logger,
		MaxIterations: cfg.MaxIterations,
	})
	res, err := solver.Minimize(cmd.Context(), opts.problem)
	if err != nil {
		return fmt.Errorf("%s: %w", gosecant.KindOf(err), err)
	}

	out := cmd.OutOrStdout()
	switch opts.output {
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(res)
	case outputYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err = enc.Encode(res); err == nil {
			err = enc.Close()
		}
	default:
		err = writeTable(out, res)
	}
	if err != nil {
		return fmt.Errorf("write %s output: %w", opts.output, err)
	}

	if opts.plot != "" {
		if err := writePlot(cmd, cfg, res, opts.plot); err != nil {
			return err
		}
	}
	return res.Err()
}

func writeTable(w io.Writer, res *gosecant.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "iteration\tL\tR\tz\tf'(L)\tf'(R)\tf'(z)\t")
	for _, rec := range res.Iterations {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			rec.Iteration,
			formatFloat(rec.L), formatFloat(rec.R), formatFloat(rec.Z),
			formatFloat(rec.FPrimeL), formatFloat(rec.FPrimeR), formatFloat(rec.FPrimeZ),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nf(x)   = %s\n", res.Function)
	fmt.Fprintf(&b, "f'(x)  = %s\n", res.Derivative)
	fmt.Fprintf(&b, "x_min  = %s\n", formatFloat(res.XMin))
	fmt.Fprintf(&b, "f_min  = %s\n", formatFloat(res.FMin))
	fmt.Fprintf(&b, "status = %s (converged=%t)\n", res.Reason, res.Converged)
	_, err := io.WriteString(w, b.String())
	return err
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 8, 64)
}

func writePlot(cmd *cobra.Command, cfg config.Config, res *gosecant.Result, path string) error {
	renderer := plot.NewRenderer(plot.Config{Workers: cfg.RenderWorkers})
	uri, err := renderer.FinalGraph(cmd.Context(), res.Function, res.Derivative, res.XMin)
	if err != nil {
		return fmt.Errorf("render final graph: %w", err)
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	if err != nil {
		return fmt.Errorf("decode final graph: %w", err)
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("write final graph: %w", err)
	}
	return nil
}
