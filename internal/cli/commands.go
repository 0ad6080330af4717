package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/lexisync/internal/client"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List user dictionaries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}
		names, err := mgr.ListDictionaries()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "no user dictionaries in %s\n", cfg.Paths.UserDataDir)
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info NAME",
	Short: "Show metadata and entry counts for a dictionary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}
		info, err := mgr.Info(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "name:     %s\n", info.Name)
		fmt.Fprintf(out, "owner:    %s\n", info.UserID)
		fmt.Fprintf(out, "version:  %s\n", info.CreatorVersion)
		fmt.Fprintf(out, "tick:     %s\n", humanize.Comma(int64(info.Tick)))
		fmt.Fprintf(out, "entries:  %s (%s deleted)\n", humanize.Comma(int64(info.Entries)), humanize.Comma(int64(info.Deleted)))
		for _, m := range info.Pending {
			fmt.Fprintf(out, "pending:  %s\n", m)
		}
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup NAME",
	Short: "Publish a snapshot of a dictionary to the sync directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if backupRemote {
			return remoteResult(cmd.OutOrStdout())(client.New(remoteURL()).Backup(args[0]))
		}
		mgr, err := newManager()
		if err != nil {
			return err
		}
		if !mgr.Backup(args[0]) {
			return fmt.Errorf("backup %s failed", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "backed up %s to %s\n", args[0], mgr.UserSyncDir())
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore SNAPSHOT",
	Short: "Merge a snapshot file into the dictionary it was taken from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if restoreRemote {
			return remoteResult(cmd.OutOrStdout())(client.New(remoteURL()).Restore(args[0]))
		}
		mgr, err := newManager()
		if err != nil {
			return err
		}
		if !mgr.Restore(args[0]) {
			return fmt.Errorf("restore %s failed", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "merged %s\n", args[0])
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export NAME FILE",
	Short: "Export a dictionary to a tab-separated text file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}
		n, err := mgr.Export(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %s entries to %s\n", humanize.Comma(int64(n)), args[1])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import NAME FILE",
	Short: "Import a tab-separated text file into a dictionary",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}
		n, err := mgr.Import(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %s entries into %s\n", humanize.Comma(int64(n)), args[0])
		return nil
	},
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [NAME]",
	Short: "Rebuild dictionaries created by older versions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			if !mgr.UpgradeUserDict(args[0]) {
				return fmt.Errorf("upgrade %s failed", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is up to date\n", args[0])
			return nil
		}
		failed, err := mgr.UpgradeAll()
		if err != nil {
			return err
		}
		if len(failed) > 0 {
			return fmt.Errorf("upgrade failed for: %s", strings.Join(failed, ", "))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "all dictionaries up to date")
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync [NAME]",
	Short: "Merge peer snapshots and publish local ones",
	Long:  "Synchronize one dictionary, or all of them when NAME is omitted. With --remote the running daemon performs the sync.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		if syncRemote {
			return remoteResult(cmd.OutOrStdout())(client.New(remoteURL()).Sync(name))
		}

		mgr, err := newManager()
		if err != nil {
			return err
		}
		var ok bool
		if name == "" {
			ok = mgr.SynchronizeAll()
		} else {
			ok = mgr.Synchronize(name)
		}
		if !ok {
			return fmt.Errorf("sync failed, see log for details")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "sync complete")
		return nil
	},
}

var (
	syncRemote    bool
	backupRemote  bool
	restoreRemote bool
)

func init() {
	syncCmd.Flags().BoolVar(&syncRemote, "remote", false, "Ask the running daemon to sync")
	backupCmd.Flags().BoolVar(&backupRemote, "remote", false, "Ask the running daemon to back up")
	restoreCmd.Flags().BoolVar(&restoreRemote, "remote", false, "Ask the running daemon to restore")
}

// remoteURL prefers LEXISYNC_URL, then the configured listen address.
func remoteURL() string {
	if u := os.Getenv("LEXISYNC_URL"); u != "" {
		return u
	}
	return "http://" + cfg.ListenAddr()
}

// remoteResult reports a daemon action on out. It returns a func so the
// client call's two results can be passed straight through.
func remoteResult(out io.Writer) func(client.Result, error) error {
	return func(res client.Result, err error) error {
		if errors.Is(err, client.ErrUnreachable) {
			return fmt.Errorf("%w (is `lexisync serve` running?)", err)
		}
		if err != nil {
			if res.Error != "" {
				return fmt.Errorf("daemon: %s", res.Error)
			}
			return err
		}
		fmt.Fprintf(out, "daemon: %s ok\n", res.Action)
		return nil
	}
}
