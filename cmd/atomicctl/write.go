package main

import (
	"io"
	"os"
	"strconv"

	"github.com/dattu/atomicwriter/pkg/atomicfile"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newWriteCmd() *cobra.Command {
	var (
		overwrite bool
		text      string
		mode      string
		syncDir   bool
	)
	cmd := &cobra.Command{
		Use:   "write DEST [FILE]",
		Short: "Atomically write FILE (or stdin) to DEST on this machine",
		Args:  cobra.RangeArgs(1, 2),
		Example: `  atomicctl write out/report.txt report.tmp
  generate | atomicctl write --overwrite out/report.txt
  atomicctl write --text hello out/greeting.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := args[0]
			perm, err := parseMode(mode)
			if err != nil {
				return err
			}
			opts := []atomicfile.Option{
				atomicfile.WithOverwrite(overwrite),
				atomicfile.WithFileMode(perm),
				atomicfile.WithSyncDir(syncDir),
			}

			if cmd.Flags().Changed("text") {
				path, err := atomicfile.WriteText(text, dest, opts...)
				if err != nil {
					return err
				}
				printf(cmd, "%s %s (%s)\n", color.GreenString("wrote"), path, humanize.Bytes(uint64(len(text))))
				return nil
			}

			in, name, err := readInput(cmd, args, 1)
			if err != nil {
				return err
			}
			defer in.Close()

			w, err := atomicfile.New(dest, opts...)
			if err != nil {
				return err
			}
			defer w.Close()

			n, err := io.Copy(w, in)
			if err != nil {
				return errors.Wrapf(err, "copy from %s", name)
			}
			path, err := w.Commit()
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"dest": path, "bytes": n, "source": name}).Debug("committed")
			printf(cmd, "%s %s (%s)\n", color.GreenString("wrote"), path, humanize.Bytes(uint64(n)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace DEST if it exists")
	cmd.Flags().StringVar(&text, "text", "", "write this text instead of reading input")
	cmd.Flags().StringVar(&mode, "mode", "0644", "octal permission bits of DEST")
	cmd.Flags().BoolVar(&syncDir, "sync-dir", true, "fsync DEST's directory after commit")
	return cmd
}

// parseMode reads an octal permission string such as 644 or 0600.
func parseMode(s string) (os.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil || v == 0 || v > 0o777 {
		return 0, errors.Errorf("invalid --mode %q: want octal permission bits like 0644", s)
	}
	return os.FileMode(v), nil
}
