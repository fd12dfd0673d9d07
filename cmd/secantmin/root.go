package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/njchilds90/gosecant/internal/config"
)

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if ctx == nil {
		ctx = context.Background()
	}

	root, err := newRootCommand()
	if err != nil {
		return err
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCommand() (*cobra.Command, error) {
	v := config.New()
	root := &cobra.Command{
		Use:           "secantmin",
		Short:         "Find the minimum of a unimodal function with the secant method",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if err := config.BindFlags(v, root.PersistentFlags()); err != nil {
		return nil, err
	}
	root.AddCommand(newServeCommand(v), newSolveCommand(v))
	return root, nil
}
