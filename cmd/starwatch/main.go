// Command starwatch runs the stargazing forecast jobs.
//
//	starwatch constellations [--date YYYY-MM-DD]
//	starwatch locations [--date YYYY-MM-DD]
//	starwatch backfill [--from YYYY-MM-DD] [--days N]
//	starwatch aurora
//	starwatch apod [--date YYYY-MM-DD]
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/starwatch/pkg/etl"
	"github.com/spf13/cobra"
)

const (
	jobConstellations = "constellations"
	jobLocations      = "locations"
	jobBackfill       = "backfill"
	jobAurora         = "aurora"
	jobAPOD           = "apod"
)

type options struct {
	configFile string
	logLevel   string
	pretty     bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "starwatch",
		Short:        "Stargazing forecast jobs",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to config file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "human-readable console logs")

	root.AddCommand(
		newJobCmd(opts, jobConstellations, "Render a chart for every constellation and store its URL"),
		newJobCmd(opts, jobLocations, "Build the stargazing status of every city"),
		newBackfillCmd(opts),
		newAuroraCmd(opts),
		newAPODCmd(opts),
	)
	return root
}

func runE(opts *options, job string, args *jobArgs) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, opts, job, *args)
	}
}

func newJobCmd(opts *options, job, short string) *cobra.Command {
	args := &jobArgs{}
	cmd := &cobra.Command{
		Use:   job,
		Short: short,
		Args:  cobra.NoArgs,
		RunE:  runE(opts, job, args),
	}
	cmd.Flags().StringVar(&args.date, "date", "", "observation date YYYY-MM-DD (default: today + job.horizon_days)")
	return cmd
}

func newBackfillCmd(opts *options) *cobra.Command {
	args := &jobArgs{}
	cmd := &cobra.Command{
		Use:   jobBackfill,
		Short: "Build the stargazing status of every city for a run of dates",
		Args:  cobra.NoArgs,
		RunE:  runE(opts, jobBackfill, args),
	}
	cmd.Flags().StringVar(&args.date, "from", "", "first date YYYY-MM-DD (default: today)")
	cmd.Flags().IntVar(&args.days, "days", etl.DefaultBackfillDays, "number of consecutive dates")
	return cmd
}

func newAuroraCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   jobAurora,
		Short: "Record aurora visibility per country from the AuroraWatch UK alert level",
		Args:  cobra.NoArgs,
		RunE:  runE(opts, jobAurora, &jobArgs{}),
	}
}

func newAPODCmd(opts *options) *cobra.Command {
	args := &jobArgs{}
	cmd := &cobra.Command{
		Use:   jobAPOD,
		Short: "Store NASA's astronomy picture of the day",
		Args:  cobra.NoArgs,
		RunE:  runE(opts, jobAPOD, args),
	}
	cmd.Flags().StringVar(&args.date, "date", "", "picture date YYYY-MM-DD (default: today)")
	return cmd
}
