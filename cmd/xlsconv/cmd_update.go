package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xlsconv/internal/notes"
	"xlsconv/internal/updater"
)

var (
	assumeYes bool
	noRestart bool
)

// newUpdater builds the updater from configuration; replaced in tests.
var newUpdater = func() (*updater.Updater, error) {
	return updater.FromConfig(cfg.Update)
}

// executable locates the installed binary; replaced in tests.
var executable = updater.Executable

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for and install new releases",
}

var updateCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the release host for a newer version",
	Args:  cobra.NoArgs,
	RunE:  runUpdateCheck,
}

var updateApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Download and install the newest release, then restart",
	Long: `Downloads the release asset for this OS and architecture, verifies its
SHA-256 when the release publishes checksums, and replaces the running
executable. The previous binary is kept as <exe>.old.`,
	Args: cobra.NoArgs,
	RunE: runUpdateApply,
}

var updateRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore the binary replaced by the last update",
	Args:  cobra.NoArgs,
	RunE:  runUpdateRollback,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), updater.BuildInfo())
		return nil
	},
}

func init() {
	updateApplyCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Install without asking")
	updateApplyCmd.Flags().BoolVar(&noRestart, "no-restart", false, "Do not restart after installing")

	updateCmd.AddCommand(updateCheckCmd)
	updateCmd.AddCommand(updateApplyCmd)
	updateCmd.AddCommand(updateRollbackCmd)
}

func check(ctx context.Context, u *updater.Updater) (bool, updater.Release, error) {
	cctx, cancel := context.WithTimeout(ctx, cfg.Update.GetTimeout())
	defer cancel()
	has, rel, err := u.Check(cctx)
	if err != nil {
		return false, rel, fmt.Errorf("could not check for updates: %w", err)
	}
	return has, rel, nil
}

func printRelease(w io.Writer, rel updater.Release) {
	fmt.Fprintf(w, "Version %s is available", rel.Version)
	if !rel.PublishedAt.IsZero() {
		fmt.Fprintf(w, " (published %s)", rel.PublishedAt.Format("2006-01-02"))
	}
	fmt.Fprintln(w)
	if rel.URL != "" {
		fmt.Fprintln(w, rel.URL)
	}
	if rendered := renderNotes(w, rel.Notes); rendered != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, rendered)
	}
}

// renderNotes styles notes for a terminal and strips markup otherwise.
func renderNotes(w io.Writer, body string) string {
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		return notes.NewRenderer("", notes.DefaultWidth).Render(body)
	}
	return notes.Plain(body)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func runUpdateCheck(cmd *cobra.Command, args []string) error {
	u, err := newUpdater()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(timeout)
	defer cancel()

	has, rel, err := check(ctx, u)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !has {
		fmt.Fprintf(out, "xlsconv %s is up to date (source: %s)\n", u.Current(), u.Source().Name())
		return nil
	}
	fmt.Fprintf(out, "Current version: %s\n", u.Current())
	printRelease(out, rel)
	fmt.Fprintln(out, "\nRun 'xlsconv update apply' to install.")
	return nil
}

func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func runUpdateApply(cmd *cobra.Command, args []string) error {
	u, err := newUpdater()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	has, rel, err := check(ctx, u)
	if err != nil {
		return err
	}
	if !has {
		fmt.Fprintf(out, "xlsconv %s is up to date\n", u.Current())
		return nil
	}

	printRelease(out, rel)
	if !assumeYes && !confirm(cmd, fmt.Sprintf("Install %s?", rel.Version)) {
		fmt.Fprintln(out, "Update canceled")
		return nil
	}

	exe, err := u.Apply(ctx, rel)
	if errors.Is(err, updater.ErrNoAsset) {
		return fmt.Errorf("%w; download it manually from %s", err, rel.URL)
	}
	if err != nil {
		return err
	}
	logger.Info("Update installed", zap.String("version", rel.Version.String()), zap.String("exe", exe))
	fmt.Fprintf(out, "Installed %s to %s\n", rel.Version, exe)

	if noRestart {
		return nil
	}
	fmt.Fprintln(out, "Restarting...")
	return u.Restart(shellArgs()...)
}

// shellArgs starts the interactive shell with the same configuration.
func shellArgs() []string {
	var args []string
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if appDir != "" {
		args = append(args, "--app-dir", appDir)
	}
	return args
}

func runUpdateRollback(cmd *cobra.Command, args []string) error {
	exe, err := executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if err := updater.Rollback(exe); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored previous version of %s\n", exe)
	return nil
}
