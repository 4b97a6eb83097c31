package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/querycache/config"
	"github.com/unkn0wn-root/querycache/errs"
	"github.com/unkn0wn-root/querycache/internal/app"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, explain(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "todos",
		Short:         "Todo list client with a cached, invalidation-aware data layer",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("QC_CONFIG"), "path to config file")

	open := func(cmd *cobra.Command) (*app.App, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return app.New(cmd.Context(), cfg, cmd.ErrOrStderr())
	}

	root.AddCommand(
		newLoginCmd(open),
		newRegisterCmd(open),
		newLogoutCmd(open),
		newWhoamiCmd(open),
		newListCmd(open),
		newMineCmd(open),
		newCreateCmd(open),
		newUpdateCmd(open),
		newDeleteCmd(open),
		newSeedCmd(open),
	)
	return root
}

type opener func(cmd *cobra.Command) (*app.App, error)

// run opens the app, runs f and closes the app with a bounded grace period.
func run(cmd *cobra.Command, open opener, f func(ctx context.Context, a *app.App) error) (err error) {
	a, err := open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := a.Close(ctx); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return f(cmd.Context(), a)
}

func explain(err error) string {
	var he *errs.HTTPError
	switch {
	case errors.Is(err, errs.ErrUnauthenticated):
		return "not logged in: run `todos login`"
	case errors.As(err, &he):
		if he.Detail != "" {
			return fmt.Sprintf("server returned %d: %s", he.Status, he.Detail)
		}
		return fmt.Sprintf("server returned %d", he.Status)
	case errors.Is(err, errs.ErrNetworkFailure):
		return "cannot reach the server: " + err.Error()
	}
	return err.Error()
}
