package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/syncer"
)

// SyncCommand runs a single reconciliation cycle against every registered server.
type SyncCommand struct {
	DatabasePath string
	ServersFile  string
	Verbose      bool

	Out io.Writer
}

func NewSyncCommand() *SyncCommand {
	return &SyncCommand{Out: os.Stdout}
}

func (cmd *SyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the local database file")
	fs.StringVar(&cmd.ServersFile, "config", "", "YAML file with servers to register before syncing")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print per-phase counts for each server")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sync [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run one sync cycle: pull and push reading progress, bookmarks and\n")
		fmt.Fprintf(os.Stderr, "annotations for every downloaded book on every registered server.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s sync\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s sync -config servers.yaml -verbose\n", os.Args[0])
	}

	return fs.Parse(args)
}

func (cmd *SyncCommand) Run() error {
	app, err := openApp(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()
	if _, err := app.SeedServers(ctx, cmd.ServersFile); err != nil {
		return err
	}
	creds, err := app.Servers.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to load servers: %w", err)
	}

	fmt.Fprintln(cmd.Out, "Sync")
	fmt.Fprintln(cmd.Out, "====")
	fmt.Fprintf(cmd.Out, "Servers: %d registered\n\n", len(creds))

	report, err := app.Runner.RunSync(ctx, syncer.TriggerCLI)
	if err != nil {
		return err
	}

	cmd.printReport(report)
	return nil
}

func (cmd *SyncCommand) printReport(report *syncer.CycleReport) {
	if len(report.Servers) == 0 {
		fmt.Fprintln(cmd.Out, "No servers registered. Use server-add or -config to add one.")
		return
	}

	ids := make([]string, 0, len(report.Servers))
	for id := range report.Servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := report.Servers[id]
		t := s.Totals()
		status := "OK"
		if len(s.Errors) > 0 {
			status = "ERRORS"
		}
		fmt.Fprintf(cmd.Out, "[%s] %s: %d pulled, %d pushed, %d deleted, %d failed\n",
			status, id, t.Pulled, t.Pushed, t.Deleted, t.Failed)

		if cmd.Verbose {
			fmt.Fprintf(cmd.Out, "    progress:    pulled %d, pushed %d\n", s.ProgressPull.Pulled, s.ProgressPush.Synced)
			fmt.Fprintf(cmd.Out, "    bookmarks:   pulled %d, pushed %d, deleted %d\n",
				s.BookmarkPull.Pulled, s.BookmarkPush.Synced, s.BookmarkPull.Deleted+s.BookmarkPush.Deleted)
			fmt.Fprintf(cmd.Out, "    annotations: pulled %d, pushed %d, deleted %d\n",
				s.AnnotationPull.Pulled, s.AnnotationPush.Synced, s.AnnotationPull.Deleted+s.AnnotationPush.Deleted)
		}
		for _, e := range s.Errors {
			fmt.Fprintf(cmd.Out, "    [ERROR] %s\n", e)
		}
	}

	t := report.Totals()
	fmt.Fprintln(cmd.Out, "\n=== Sync Summary ===")
	fmt.Fprintf(cmd.Out, "Servers: %d\n", len(report.Servers))
	fmt.Fprintf(cmd.Out, "Pulled: %d\n", t.Pulled)
	fmt.Fprintf(cmd.Out, "Pushed: %d\n", t.Pushed)
	fmt.Fprintf(cmd.Out, "Deleted: %d\n", t.Deleted)
	fmt.Fprintf(cmd.Out, "Failed: %d\n", t.Failed)
	fmt.Fprintf(cmd.Out, "Duration: %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}
