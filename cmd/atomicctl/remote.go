package main

import (
	"io"

	"github.com/dattu/atomicwriter/pkg/storage"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPutCmd(v *viper.Viper) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "put KEY [FILE]",
		Short: "Store FILE (or stdin) under KEY on the server",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, name, err := readInput(cmd, args, 1)
			if err != nil {
				return err
			}
			data, err := io.ReadAll(in)
			in.Close()
			if err != nil {
				return errors.Wrapf(err, "read %s", name)
			}

			// Unset flag defers to the server's default.
			var ow *bool
			if cmd.Flags().Changed("overwrite") {
				ow = &overwrite
			}

			client, release, err := dial(v)
			if err != nil {
				return err
			}
			defer release()
			ctx, cancel := callContext()
			defer cancel()

			obj, err := client.Put(ctx, args[0], data, ow)
			if err != nil {
				return err
			}
			printf(cmd, "%s %s (%s)\n", color.GreenString("stored"), obj.Key, humanize.Bytes(uint64(obj.Size)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace KEY if it exists")
	return cmd
}

func newGetCmd(v *viper.Viper) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Fetch KEY; with -o the local copy is written atomically",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, release, err := dial(v)
			if err != nil {
				return err
			}
			defer release()
			ctx, cancel := callContext()
			defer cancel()

			data, err := client.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := storage.AtomicWrite(out, data, 0o644); err != nil {
				return err
			}
			printf(cmd, "%s %q → %q\n", color.GreenString("retrieved"), args[0], out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to this local path instead of stdout")
	return cmd
}

func newStatCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stat KEY",
		Short: "Show the catalog record of KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, release, err := dial(v)
			if err != nil {
				return err
			}
			defer release()
			ctx, cancel := callContext()
			defer cancel()

			obj, err := client.Stat(ctx, args[0])
			if err != nil {
				return err
			}
			label := color.New(color.FgGreen)
			printf(cmd, "%s%s\n", label.Sprint("Key:         "), obj.Key)
			printf(cmd, "%s%s\n", label.Sprint("Path:        "), obj.Path)
			printf(cmd, "%s%s\n", label.Sprint("Size:        "), humanize.Bytes(uint64(obj.Size)))
			printf(cmd, "%s%016x\n", label.Sprint("Fingerprint: "), obj.Fingerprint)
			printf(cmd, "%s%s\n", label.Sprint("Committed:   "), humanize.Time(obj.Committed))
			return nil
		},
	}
}

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "verify KEY",
		Short: "Check KEY on disk against its catalog fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, release, err := dial(v)
			if err != nil {
				return err
			}
			defer release()
			ctx, cancel := callContext()
			defer cancel()

			obj, err := client.Verify(ctx, args[0])
			if err != nil {
				return err
			}
			printf(cmd, "%s %s\n", color.GreenString("ok"), obj.Key)
			return nil
		},
	}
}

func newDeleteCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "delete KEY",
		Aliases: []string{"rm"},
		Short:   "Remove KEY from the server and its catalog",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, release, err := dial(v)
			if err != nil {
				return err
			}
			defer release()
			ctx, cancel := callContext()
			defer cancel()

			key, err := client.Delete(ctx, args[0])
			if err != nil {
				return err
			}
			printf(cmd, "%s %s\n", color.YellowString("deleted"), key)
			return nil
		},
	}
}

func newListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every key recorded on the server",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, release, err := dial(v)
			if err != nil {
				return err
			}
			defer release()
			ctx, cancel := callContext()
			defer cancel()

			keys, err := client.List(ctx)
			if err != nil {
				return err
			}
			for _, k := range keys {
				printf(cmd, "%s\n", k)
			}
			return nil
		},
	}
}
