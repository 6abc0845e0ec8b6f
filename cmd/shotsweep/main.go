// Package main is the entrypoint for the ShotSweep CLI.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/MacJediWizard/shotsweep/internal/audit"
	"github.com/MacJediWizard/shotsweep/internal/config"
	"github.com/MacJediWizard/shotsweep/internal/deletion"
	"github.com/MacJediWizard/shotsweep/internal/ftrack"
	"github.com/MacJediWizard/shotsweep/internal/query"
	"github.com/MacJediWizard/shotsweep/internal/report"
	"github.com/MacJediWizard/shotsweep/internal/selection"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "shotsweep",
		Short: "ShotSweep - production asset cleanup for ftrack",
		Long: `ShotSweep locates asset versions on an ftrack server and deletes
whole versions or subsets of their media components, dry-run first.

Run 'shotsweep configure' to connect to a server.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigureCmd(),
		newSelectCmd(&verbose),
		newDeleteVersionsCmd(&verbose),
		newDeleteComponentsCmd(&verbose),
		newHistoryCmd(&verbose),
	)

	return rootCmd
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ShotSweep %s\n", Version)
			fmt.Printf("  Commit:     %s\n", Commit)
			fmt.Printf("  Built:      %s\n", BuildDate)
			fmt.Printf("  Go version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newConfigureCmd() *cobra.Command {
	var serverURL string
	var project string

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Point ShotSweep at an ftrack server",
		Long: `Configure the server URL, API user, and API key.

To generate an API key, log into the server and navigate to
System Settings > Security > API keys.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(serverURL, project)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "ftrack server URL (required)")
	cmd.Flags().StringVar(&project, "project", "", "Default project id to scope operations to")
	_ = cmd.MarkFlagRequired("server")

	return cmd
}

func runConfigure(serverURL, project string) error {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("server URL must use http or https scheme")
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Enter API user: ")
	apiUser, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read API user: %w", err)
	}

	fmt.Print("Enter API key: ")
	apiKey, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read API key: %w", err)
	}

	cfg := &config.Config{
		ServerURL: strings.TrimRight(serverURL, "/"),
		APIUser:   strings.TrimSpace(apiUser),
		APIKey:    strings.TrimSpace(apiKey),
		ProjectID: project,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveDefault(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	path, _ := config.DefaultConfigPath()
	fmt.Printf("Configuration saved to %s\n", path)
	return nil
}

// selectionFlags are the acquisition and filter flags shared by the
// select and delete commands.
type selectionFlags struct {
	ids         []string
	patterns    []string
	list        string
	field       string
	interactive bool

	statuses  []string
	users     []string
	olderThan string
	newerThan string
	attrs     []string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.ids, "id", nil, "Version id (repeatable)")
	cmd.Flags().StringArrayVar(&f.patterns, "pattern", nil, "Name pattern: exact, wildcard, or /regex/ (repeatable)")
	cmd.Flags().StringVar(&f.list, "list", "", "Named list to take members from")
	cmd.Flags().StringVar(&f.field, "field", "", "Query field patterns match against (default: asset.name)")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "Refine the matched set interactively before proceeding")
	cmd.Flags().StringSliceVar(&f.statuses, "status", nil, "Filter by status name (repeatable)")
	cmd.Flags().StringSliceVar(&f.users, "user", nil, "Filter by username (repeatable)")
	cmd.Flags().StringVar(&f.olderThan, "older-than", "", "Only versions dated before YYYY-MM-DD")
	cmd.Flags().StringVar(&f.newerThan, "newer-than", "", "Only versions dated on or after YYYY-MM-DD")
	cmd.Flags().StringArrayVar(&f.attrs, "attr", nil, "Custom attribute filter key=value (repeatable)")
}

func (f *selectionFlags) criteria() (query.Criteria, error) {
	var c query.Criteria

	if len(f.statuses) > 0 {
		c.Status = &query.StatusCriterion{Names: f.statuses}
	}
	if len(f.users) > 0 {
		c.User = &query.UserCriterion{Usernames: f.users}
	}

	var from, to *time.Time
	if f.newerThan != "" {
		t, err := time.Parse("2006-01-02", f.newerThan)
		if err != nil {
			return c, fmt.Errorf("unparseable date %q: %w", f.newerThan, err)
		}
		from = &t
	}
	if f.olderThan != "" {
		t, err := time.Parse("2006-01-02", f.olderThan)
		if err != nil {
			return c, fmt.Errorf("unparseable date %q: %w", f.olderThan, err)
		}
		to = &t
	}
	switch {
	case from != nil && to != nil:
		c.Date = &query.DateCriterion{Kind: query.DateBetween, From: from, To: to}
	case from != nil:
		c.Date = &query.DateCriterion{Kind: query.DateNewer, From: from}
	case to != nil:
		c.Date = &query.DateCriterion{Kind: query.DateOlder, To: to}
	}

	for _, attr := range f.attrs {
		key, value, found := strings.Cut(attr, "=")
		if !found || key == "" {
			return c, fmt.Errorf("invalid attribute filter %q, expected key=value", attr)
		}
		c.Attributes = append(c.Attributes, query.AttributeCriterion{
			Key:   key,
			Op:    query.AttrEq,
			Value: value,
		})
	}

	return c, nil
}

// pipeline bundles everything a command needs to talk to the server.
type pipeline struct {
	cfg      *config.Config
	session  *ftrack.Session
	scope    ftrack.Scope
	resolver *selection.Resolver
	logger   zerolog.Logger
}

func newPipeline(verbose bool, flags *selectionFlags) (*pipeline, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("not configured: %w (run 'shotsweep configure')", err)
	}

	logger := newLogger(verbose)
	session := ftrack.NewSession(cfg.ServerURL, cfg.APIUser, cfg.APIKey, logger)
	scope := ftrack.Scope{ProjectID: cfg.ProjectID}

	var opts []selection.Option
	field := cfg.SearchField
	if flags != nil && flags.field != "" {
		field = flags.field
	}
	if field != "" {
		opts = append(opts, selection.WithSearchField(field))
	}

	return &pipeline{
		cfg:      cfg,
		session:  session,
		scope:    scope,
		resolver: selection.NewResolver(session, scope, logger, opts...),
		logger:   logger,
	}, nil
}

func (p *pipeline) acquire(ctx context.Context, flags *selectionFlags) (*selection.Result, error) {
	criteria, err := flags.criteria()
	if err != nil {
		return nil, err
	}

	var result *selection.Result
	switch {
	case len(flags.ids) > 0:
		result, err = p.resolver.ByIDs(ctx, flags.ids)
	case len(flags.patterns) > 0:
		result, err = p.resolver.ByPatterns(ctx, flags.patterns, criteria)
	case flags.list != "":
		result, err = p.resolver.ByList(ctx, flags.list)
	default:
		return nil, fmt.Errorf("no selection given: use --id, --pattern, or --list")
	}
	if err != nil {
		return nil, err
	}

	if flags.interactive && len(result.Candidates) > 0 {
		result = refineInteractive(os.Stdin, os.Stdout, result.Candidates, p.cfg.PageSize)
	}
	return result, nil
}

// printSuggestions shows alternative patterns when a search matched nothing.
func printSuggestions(result *selection.Result) {
	if len(result.Suggestions) == 0 {
		return
	}
	fmt.Println("Patterns worth trying:")
	for _, s := range result.Suggestions {
		fmt.Printf("  %s\n", s)
	}
}

func newSelectCmd(verbose *bool) *cobra.Command {
	flags := &selectionFlags{}

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Preview which versions a selection matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(*verbose, flags)
			if err != nil {
				return err
			}

			result, err := p.acquire(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if result.Cancelled {
				fmt.Println("Selection cancelled.")
				return nil
			}

			printCandidates(result)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func printCandidates(result *selection.Result) {
	if len(result.Candidates) == 0 {
		fmt.Println("No versions matched.")
		printSuggestions(result)
		return
	}
	for _, c := range result.Candidates {
		fmt.Printf("%s  %-40s status=%s owner=%s\n", c.ID, c.Label, c.Meta["status"], c.Meta["owner"])
	}
	fmt.Printf("\n%d version(s) matched.\n", len(result.Candidates))
	for _, id := range result.Missing {
		fmt.Printf("warning: requested id %s not found\n", id)
	}
}

func newDeleteVersionsCmd(verbose *bool) *cobra.Command {
	flags := &selectionFlags{}
	var execute bool
	var yes bool
	var reportPath string

	cmd := &cobra.Command{
		Use:   "delete-versions",
		Short: "Delete whole asset versions (dry run by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(*verbose, flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			result, err := p.acquire(ctx, flags)
			if err != nil {
				return err
			}
			if result.Cancelled {
				fmt.Println("Selection cancelled.")
				return nil
			}
			if len(result.Candidates) == 0 {
				fmt.Println("Nothing selected.")
				printSuggestions(result)
				return nil
			}

			ids := make([]string, 0, len(result.Candidates))
			for _, c := range result.Candidates {
				ids = append(ids, c.ID)
			}

			if execute && !yes && !confirm(fmt.Sprintf("Permanently delete %d version(s)?", len(ids))) {
				fmt.Println("Aborted.")
				return nil
			}

			orch := deletion.NewOrchestrator(p.session, p.session, p.scope, p.logger)
			run, err := orch.DeleteVersions(ctx, ids, deletion.Options{DryRun: !execute})
			if err != nil {
				return err
			}

			return finishRun(ctx, "versions", !execute, reportPath, run, p.logger)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&execute, "execute", false, "Actually delete; without this flag the run is a dry run")
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the run report to a CSV file")

	return cmd
}

func newDeleteComponentsCmd(verbose *bool) *cobra.Command {
	flags := &selectionFlags{}
	var choice string
	var execute bool
	var yes bool
	var reportPath string

	cmd := &cobra.Command{
		Use:   "delete-components",
		Short: "Delete media components of versions (dry run by default)",
		Long: `Delete a subset of each selected version's media components.

The choice controls what is targeted:
  all       - every component except the protected thumbnail
  original  - only original-role components
  encoded   - only server review encodes (high and low)

The thumbnail component is never deleted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			componentChoice, err := parseChoice(choice)
			if err != nil {
				return err
			}

			p, err := newPipeline(*verbose, flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			result, err := p.acquire(ctx, flags)
			if err != nil {
				return err
			}
			if result.Cancelled {
				fmt.Println("Selection cancelled.")
				return nil
			}
			if len(result.Candidates) == 0 {
				fmt.Println("Nothing selected.")
				printSuggestions(result)
				return nil
			}

			choices := make(map[string]deletion.ComponentChoice, len(result.Candidates))
			for _, c := range result.Candidates {
				choices[c.ID] = componentChoice
			}

			if execute && !yes && !confirm(fmt.Sprintf("Permanently delete components of %d version(s)?", len(choices))) {
				fmt.Println("Aborted.")
				return nil
			}

			orch := deletion.NewOrchestrator(p.session, p.session, p.scope, p.logger)
			run, err := orch.DeleteComponents(ctx, choices, deletion.Options{DryRun: !execute})
			if err != nil {
				return err
			}

			return finishRun(ctx, "components", !execute, reportPath, run, p.logger)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&choice, "choice", "all", "Component choice: all, original, or encoded")
	cmd.Flags().BoolVar(&execute, "execute", false, "Actually delete; without this flag the run is a dry run")
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the run report to a CSV file")

	return cmd
}

func parseChoice(s string) (deletion.ComponentChoice, error) {
	switch s {
	case "all":
		return deletion.ChoiceAll, nil
	case "original":
		return deletion.ChoiceOriginalOnly, nil
	case "encoded":
		return deletion.ChoiceEncodedOnly, nil
	default:
		return "", fmt.Errorf("unknown choice %q: use all, original, or encoded", s)
	}
}

// finishRun prints the summary, optionally exports the CSV report, and
// records executed runs in the local history database.
func finishRun(ctx context.Context, mode string, dryRun bool, reportPath string, run *deletion.RunResult, logger zerolog.Logger) error {
	fmt.Print(report.FormatSummary(run.Summary, dryRun))

	if reportPath != "" {
		if err := report.WriteCSVFile(reportPath, run.Report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", reportPath)
	}

	if dryRun {
		return nil
	}

	configDir, err := config.DefaultConfigDir()
	if err != nil {
		return nil
	}
	store, err := audit.Open(configDir, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("run history unavailable")
		return nil
	}
	defer store.Close()

	if err := store.RecordRun(ctx, mode, dryRun, run.Summary); err != nil {
		logger.Warn().Err(err).Msg("failed to record run")
	}
	return nil
}

func newHistoryCmd(verbose *bool) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent executed deletion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*verbose)

			configDir, err := config.DefaultConfigDir()
			if err != nil {
				return err
			}
			store, err := audit.Open(configDir, logger)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}
			if len(runs) == 0 {
				fmt.Println("No recorded runs.")
				return nil
			}

			for _, r := range runs {
				fmt.Printf("%s  %-10s versions=%d components=%d size=%s failures=%d\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.Mode,
					r.VersionsDeleted,
					r.ComponentsDeleted,
					report.FormatBytes(r.BytesDeleted),
					len(r.Failures),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
