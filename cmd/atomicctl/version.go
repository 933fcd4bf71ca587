package main

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version information injected at build time with -ldflags.
var (
	Version   string
	GitCommit string
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			title := color.New(color.FgCyan, color.Bold)
			printf(cmd, "%s\n", title.Sprintf("atomicctl %s", orDefault(Version, "dev")))
			printf(cmd, "Git commit: %s\n", orDefault(GitCommit, "unknown"))
			printf(cmd, "Go version: %s\n", runtime.Version())
			printf(cmd, "OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
