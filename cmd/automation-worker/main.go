// Command automation-worker drives pending workflow executions to completion.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:                  "automation-worker",
		Usage:                 "Execute CRM automation workflows from the execution log queue",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewRunCommand(),
			NewProcessOnceCommand(),
			NewExpirePendingCommand(),
			NewValidateCommand(),
		},
	}
}

func main() {
	err := newRootCommand().Run(context.Background(), os.Args)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
