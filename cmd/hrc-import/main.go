// Command hrc-import runs HR compliance imports and maintenance from the shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"hr-compliance-api/config"
	"hr-compliance-api/services"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Exit codes: 1 fatal error, 2 batch finished with row errors.
const exitRowErrors = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(int(exit))
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type exitError int

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hrc-import",
		Short:         "Import employees, departments and training records from spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.LoadSettings()
			if err != nil {
				return err
			}
			if logFile, _ := config.InitLogging(settings); logFile != nil {
				cobra.OnFinalize(func() { logFile.Close() })
			}
			config.InitDB()
			return nil
		},
	}
	root.AddCommand(newRunCmd(), newBatchesCmd(), newRefreshStatusCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		opts     services.ImportOptions
		kind     string
		lockName string
	)
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Import an .xlsx workbook or .csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := services.NewImportJobService(config.DB, config.Current())
			if err != nil {
				return err
			}
			report, err := job.RunFile(cmd.Context(), &services.ImportFileInput{
				Path:     args[0],
				Kind:     kind,
				Options:  opts,
				LockName: lockName,
			})
			if report != nil {
				fmt.Fprint(cmd.OutOrStdout(), job.Reports().Text(report))
			}
			if err != nil {
				if errors.Is(err, services.ErrImportAlreadyRunning) {
					return errors.New("another import is running (dataset lock held)")
				}
				return err
			}
			if report.Counters.Errors > 0 {
				return exitError(exitRowErrors)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.DryRun, "dry-run", false, "classify rows without writing anything")
	f.BoolVar(&opts.UpdateExisting, "update-existing", true, "update entities that already exist")
	f.BoolVar(&opts.CreateMissing, "create-missing", true, "create referenced departments and certificate types")
	f.StringVar(&opts.SyncMode, "sync-mode", services.SyncModeMerge, "replace, merge or update_only")
	f.BoolVar(&opts.SoftDelete, "soft-delete", true, "deactivate instead of delete in replace mode")
	f.StringVar(&opts.FailurePolicy, "failure-policy", services.FailurePolicyAtomic, "atomic or savepoint")
	f.StringVar(&opts.TriggerSource, "trigger", "cli", "trigger source stored on the batch")
	f.StringVar(&kind, "kind", "", "entity kind for single-subject files (departments, employees, certificate_types, training_records)")
	f.StringVar(&lockName, "lock-name", "", "dataset lock name (defaults to IMPORT_LOCK_NAME)")
	return cmd
}

func newBatchesCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List recent import batches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			batches, total, err := services.NewImportBatchService(config.DB).List(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BATCH\tSTATUS\tSUBJECT\tFILE\tSTARTED\tROWS\tCREATED\tUPDATED\tSKIPPED\tERRORS")
			for _, b := range batches {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
					b.BatchID, b.Status, b.SubjectType, b.FileName, b.StartedAt.Format(time.DateTime),
					b.TotalRows, b.Created, b.Updated, b.Skipped, b.Errors)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d batches\n", len(batches), total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of batches (1-100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of batches to skip")
	return cmd
}

func newRefreshStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-status",
		Short: "Recompute certificate statuses against today's date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := services.NewCertificateStatusService(config.DB, config.Current()).RefreshStatuses(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			logrus.WithField("by_status", summary.ByStatus).Debug("refresh finished")
			fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d certificate records, updated %d\n", summary.Scanned, summary.Updated)
			return nil
		},
	}
}
