package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gemeos/tenant-auth/pkg/cli"
)

func main() {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		// "can" already printed the decision
		if !errors.Is(err, cli.ErrPermissionDenied) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
