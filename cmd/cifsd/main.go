// Command cifsd is the userspace control-plane daemon for the split
// SMB/CIFS server: it supervises the worker process, answers the
// kernel engine's IPC requests (login, tree connect, share config,
// heartbeat) and drives the srvsvc named-pipe RPC engine.
package main

import (
	"fmt"
	"os"

	"github.com/sergey-senozhatsky/cifsd-tools2/cmd/cifsd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
