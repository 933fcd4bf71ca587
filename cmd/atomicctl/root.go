package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dattu/atomicwriter/pkg/logging"
	"github.com/dattu/atomicwriter/pkg/rpc"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultServer = "localhost:50061"

// rpcTimeout bounds every remote call.
var rpcTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "atomicctl",
		Short:         "Atomic file writes, locally or through atomicwriterd",
		Long:          color.CyanString("atomicctl - the destination holds the old content or the new one, never a mix"),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return errors.Wrap(err, "read config")
				}
			}
			level := "warn"
			if v.GetBool("verbose") {
				level = "debug"
			}
			logging.SetupWriter(cmd.ErrOrStderr(), level, "text")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	root.PersistentFlags().String("server", defaultServer, "atomicwriterd gRPC address")
	root.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	v.SetEnvPrefix("ATOMICCTL")
	v.AutomaticEnv()
	_ = v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(
		newWriteCmd(),
		newPutCmd(v),
		newGetCmd(v),
		newStatCmd(v),
		newVerifyCmd(v),
		newDeleteCmd(v),
		newListCmd(v),
		newVersionCmd(),
	)
	return root
}

// dial connects to the configured server and returns a client plus a
// release func.
func dial(v *viper.Viper) (*rpc.Client, func(), error) {
	addr := v.GetString("server")
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "dial %s", addr)
	}
	return rpc.NewClient(conn), func() { _ = conn.Close() }, nil
}

func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), rpcTimeout)
}

// readInput reads the named file, or stdin when args has no file operand.
func readInput(cmd *cobra.Command, args []string, idx int) (io.ReadCloser, string, error) {
	if len(args) <= idx || args[idx] == "-" {
		return io.NopCloser(cmd.InOrStdin()), "stdin", nil
	}
	f, err := os.Open(args[idx])
	if err != nil {
		return nil, "", err
	}
	return f, args[idx], nil
}

func printf(cmd *cobra.Command, format string, a ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, a...)
}
