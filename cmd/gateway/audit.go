package main

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/gateway/pkg/audit"
	"mercator-hq/gateway/pkg/cli"
	"mercator-hq/gateway/pkg/config"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query and prune the decision log",
}

var auditListFlags struct {
	since      time.Duration
	decision   string
	rule       string
	generation string
	limit      int
	oldest     bool
	format     string
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded decisions",
	Long: `List decisions from the decision log configured under audit, newest first.

Examples:
  # Denials in the last hour
  gateway audit list --since 1h --decision deny

  # Everything one rule decided, as JSON
  gateway audit list --rule allow-known-teams --format json`,
	Args: cobra.NoArgs,
	RunE: runAuditList,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy once",
	Args:  cobra.NoArgs,
	RunE:  runAuditPrune,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd, auditPruneCmd)

	f := auditListCmd.Flags()
	f.DurationVar(&auditListFlags.since, "since", 0, "only decisions newer than this, e.g. 1h")
	f.StringVar(&auditListFlags.decision, "decision", "", "filter by decision: allow, deny")
	f.StringVar(&auditListFlags.rule, "rule", "", "filter by deciding rule")
	f.StringVar(&auditListFlags.generation, "generation", "", "filter by rule set generation")
	f.IntVarP(&auditListFlags.limit, "limit", "n", 50, "maximum number of decisions")
	f.BoolVar(&auditListFlags.oldest, "oldest", false, "oldest first")
	f.StringVar(&auditListFlags.format, "format", "text", "output format: text, json")
}

// AuditReport is the output of "audit list".
type AuditReport []*audit.Record

// Text renders one decision per line.
func (r AuditReport) Text() string {
	if len(r) == 0 {
		return "no decisions recorded"
	}
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tDECISION\tRULE\tBACKEND\tREQUEST\tID")
	for _, rec := range r {
		rule := rec.Rule
		if rule == "" {
			rule = "-"
		}
		backend := rec.Backend
		if backend == "" {
			backend = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s %s\t%s\n",
			rec.Time.UTC().Format(time.RFC3339), rec.Decision, rule, backend,
			rec.Method, rec.Path, rec.RequestID)
	}
	tw.Flush()
	return buf.String()
}

// openAuditStorage opens the configured decision log for the audit commands.
func openAuditStorage(cmd *cobra.Command) (audit.Storage, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Audit.Backend == "memory" {
		return nil, nil, cli.NewConfigError(cfgFile, fmt.Errorf("audit backend %q keeps no records between runs", cfg.Audit.Backend))
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	storage, err := audit.Open(&cfg.Audit, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open decision log: %w", err)
	}
	return storage, cfg, nil
}

func runAuditList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(auditListFlags.format)
	if err != nil {
		return err
	}
	storage, _, err := openAuditStorage(cmd)
	if err != nil {
		return err
	}
	defer storage.Close()

	q := &audit.Query{
		Decision:   auditListFlags.decision,
		Rule:       auditListFlags.rule,
		Generation: auditListFlags.generation,
		Limit:      auditListFlags.limit,
	}
	if auditListFlags.since > 0 {
		since := time.Now().Add(-auditListFlags.since)
		q.Since = &since
	}
	if auditListFlags.oldest {
		q.Order = audit.OrderOldest
	}

	records, err := storage.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("audit list", err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), AuditReport(records))
}

func runAuditPrune(cmd *cobra.Command, args []string) error {
	storage, cfg, err := openAuditStorage(cmd)
	if err != nil {
		return err
	}
	defer storage.Close()

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	deleted, err := audit.NewPruner(storage, &cfg.Audit.Retention, logger, nil).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ pruned %d decisions\n", deleted)
	return nil
}
