// Command rjrsync is the boss-side CLI: it resolves a source and
// destination endpoint, establishes a Comms to each (spawning a local doer
// goroutine or an ssh-launched remote one), and drives a sync between
// them.
package main

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rjrsync/rjrsync/internal/boss"
	"github.com/rjrsync/rjrsync/internal/endpoint"
	"github.com/rjrsync/rjrsync/internal/logging"
	"github.com/rjrsync/rjrsync/internal/progress"
	"github.com/rjrsync/rjrsync/internal/specfile"
	"github.com/rjrsync/rjrsync/internal/sync"
)

// Exit codes, per the CLI surface: 0 success, 10 source-session failure,
// 11 destination-session failure, 12 sync failure, 18 malformed argument
// (path syntax or filter prefix), 19 invalid filter regex, 20 doer failure
// (that last one belongs to rjrsync-agent).
const (
	exitSourceSession  = 10
	exitDestSession    = 11
	exitSyncFailure    = 12
	exitArgumentError  = 18
	exitBadFilterRegex = 19
)

type cliConfig struct {
	specPath      string
	filters       []string
	dryRun        bool
	showStats     bool
	quiet         bool
	verbose       bool
	destFileNewer string
	destFileOlder string
	destEntryDel  string
	destRootDel   string
	forceRedeploy bool
	needsDeploy   string
	remotePort    int
}

func main() {
	var cfg cliConfig

	root := &cobra.Command{
		Use:   "rjrsync SRC DEST",
		Short: "Synchronize a directory tree to another machine, similar to rsync.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, cfg)
		},
	}

	flags := root.Flags()
	flags.StringVar(&cfg.specPath, "spec", "", "YAML file listing multiple syncs to run sequentially, instead of SRC/DEST")
	flags.StringArrayVar(&cfg.filters, "filter", nil, "a +/- prefixed regex filter (repeatable)")
	flags.BoolVar(&cfg.dryRun, "dry-run", false, "show what would be done without changing the destination")
	flags.BoolVar(&cfg.showStats, "stats", false, "print a summary of bytes/files transferred at the end")
	flags.BoolVar(&cfg.quiet, "quiet", false, "suppress all non-error output")
	flags.BoolVar(&cfg.verbose, "verbose", false, "enable debug logging")
	flags.StringVar(&cfg.destFileNewer, "dest-file-newer", "prompt", "policy when the destination file is newer: prompt, skip, overwrite, error")
	flags.StringVar(&cfg.destFileOlder, "dest-file-older", "overwrite", "policy when the destination file is older: prompt, skip, overwrite, error")
	flags.StringVar(&cfg.destEntryDel, "dest-entry-needs-deleting", "prompt", "policy when a destination entry must be deleted: prompt, skip, overwrite, error")
	flags.StringVar(&cfg.destRootDel, "dest-root-needs-deleting", "prompt", "policy when the destination root must be deleted: prompt, skip, overwrite, error")
	flags.BoolVar(&cfg.forceRedeploy, "force-redeploy", false, "always redeploy the doer, even if a compatible one is already installed")
	flags.StringVar(&cfg.needsDeploy, "needs-deploy", "prompt", "what to do when a remote doer needs deploying: prompt, deploy, error")
	flags.IntVar(&cfg.remotePort, "remote-port", 40129, "TCP port a remote doer should listen on")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFromError(err))
	}
}

func run(cmd *cobra.Command, args []string, cfg cliConfig) error {
	level := logging.LevelInfo
	if cfg.quiet {
		level = logging.LevelError
	} else if cfg.verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewStderr(level)

	var syncs []specfile.Sync
	if cfg.specPath != "" {
		s, err := specfile.Load(cfg.specPath)
		if err != nil {
			return err
		}
		syncs = s.Syncs
	} else {
		if len(args) != 2 {
			return errors.New("expected exactly two positional arguments: SRC and DEST (or use --spec)")
		}
		syncs = []specfile.Sync{{Src: args[0], Dest: args[1], Filters: cfg.filters}}
	}

	for _, s := range syncs {
		if err := runOneSync(logger, s, cfg); err != nil {
			return err
		}
	}
	return nil
}

func runOneSync(logger *logging.Logger, s specfile.Sync, cfg cliConfig) error {
	filters := mergeFilters(s.Filters, cfg.filters)
	if err := validateFilters(filters); err != nil {
		return err
	}

	srcEp, err := endpoint.Parse(s.Src)
	if err != nil {
		return wrappedExitError{exitArgumentError, errors.Wrap(err, "invalid source")}
	}
	destEp, err := endpoint.Parse(s.Dest)
	if err != nil {
		return wrappedExitError{exitArgumentError, errors.Wrap(err, "invalid destination")}
	}

	deployPolicy, err := parseDeployPolicy(firstNonEmpty(cfg.needsDeploy, "prompt"))
	if err != nil {
		return err
	}
	prompter := boss.TerminalPrompter{In: os.Stdin, Out: os.Stderr}

	srcComms, err := dial(srcEp, boss.SessionConfig{
		RemotePort: cfg.remotePort, Prompter: prompter, DeployPolicy: deployPolicy,
		Logger: logger.Sublogger("src"), ForceRedeploy: cfg.forceRedeploy,
	})
	if err != nil {
		return wrappedExitError{exitSourceSession, errors.Wrap(err, "unable to connect to source")}
	}
	defer srcComms.Shutdown()

	destComms, err := dial(destEp, boss.SessionConfig{
		RemotePort: cfg.remotePort, Prompter: prompter, DeployPolicy: deployPolicy,
		Logger: logger.Sublogger("dest"), ForceRedeploy: cfg.forceRedeploy,
	})
	if err != nil {
		return wrappedExitError{exitDestSession, errors.Wrap(err, "unable to connect to destination")}
	}
	defer destComms.Shutdown()

	policies, err := resolvePolicies(s, cfg)
	if err != nil {
		return err
	}

	tracker := progress.NewTracker()
	summary, err := sync.RunSync(srcComms, destComms, sync.Config{
		Filters:   filters,
		Policies:  policies,
		DryRun:    cfg.dryRun,
		ShowStats: cfg.showStats,
		Prompter:  prompter,
	}, tracker, logger)
	if err != nil {
		return wrappedExitError{exitSyncFailure, err}
	}

	if cfg.showStats {
		fmt.Printf("%d entries copied, %d deleted, %d bytes transferred\n", summary.NumCopied, summary.NumDeleted, summary.NumBytes)
	}
	return nil
}

func dial(ep endpoint.Endpoint, cfg boss.SessionConfig) (boss.Comms, error) {
	if !ep.IsRemote() {
		return boss.NewLocalSession(ep.Path)
	}
	return boss.NewRemoteSession(context.Background(), ep, cfg)
}

func mergeFilters(specFilters, cliFilters []string) []string {
	if len(cliFilters) == 0 {
		return specFilters
	}
	return append(append([]string{}, specFilters...), cliFilters...)
}

// validateFilters checks every filter string's prefix and regex syntax up
// front, before any network or filesystem work, so a malformed --filter
// fails fast with a distinct exit code for each kind of mistake rather than
// surfacing deep inside the query phase.
func validateFilters(filters []string) error {
	for _, f := range filters {
		if f == "" || (f[0] != '+' && f[0] != '-') {
			return wrappedExitError{exitArgumentError, errors.Errorf("filter %q must start with '+' or '-'", f)}
		}
		pattern := f[1:]
		if pattern == "" {
			return wrappedExitError{exitArgumentError, errors.Errorf("filter %q has no pattern", f)}
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return wrappedExitError{exitBadFilterRegex, errors.Wrapf(err, "invalid filter pattern %q", pattern)}
		}
	}
	return nil
}

func resolvePolicies(s specfile.Sync, cfg cliConfig) (sync.Policies, error) {
	newer, err := sync.ParseBehavior(firstNonEmpty(s.Policy.DestFileNewer, cfg.destFileNewer))
	if err != nil {
		return sync.Policies{}, err
	}
	older, err := sync.ParseBehavior(firstNonEmpty(s.Policy.DestFileOlder, cfg.destFileOlder))
	if err != nil {
		return sync.Policies{}, err
	}
	del, err := sync.ParseBehavior(firstNonEmpty(s.Policy.DestEntryNeedsDelete, cfg.destEntryDel))
	if err != nil {
		return sync.Policies{}, err
	}
	rootDel, err := sync.ParseBehavior(firstNonEmpty(s.Policy.DestRootNeedsDelete, cfg.destRootDel))
	if err != nil {
		return sync.Policies{}, err
	}
	return sync.Policies{
		DestFileNewer:        newer,
		DestFileOlder:        older,
		DestEntryNeedsDelete: del,
		DestRootNeedsDelete:  rootDel,
	}, nil
}

func parseDeployPolicy(s string) (boss.DeployPolicy, error) {
	switch s {
	case "prompt":
		return boss.DeployPolicyPrompt, nil
	case "deploy":
		return boss.DeployPolicyAlways, nil
	case "error":
		return boss.DeployPolicyError, nil
	default:
		return 0, errors.Errorf("invalid --needs-deploy value %q", s)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// wrappedExitError pairs an error with the process exit code it should
// produce, so main can report it after cobra's own error formatting.
type wrappedExitError struct {
	code int
	err  error
}

func (w wrappedExitError) Error() string { return w.err.Error() }

func exitFromError(err error) int {
	if we, ok := err.(wrappedExitError); ok {
		return we.code
	}
	return exitSyncFailure
}
