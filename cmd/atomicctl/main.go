// cmd/atomicctl/main.go
// atomicctl – writes files atomically on the local machine or through a
// remote atomicwriterd.

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}
