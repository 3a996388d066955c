package main

import (
	"os"
	"syscall"

	"github.com/awnumar/memguard"

	"github.com/muhammetozeski/TPMPass/cli/cmd"
)

func main() {
	// wipe enclaves and clear a pending clipboard exposure on Ctrl-C
	memguard.CatchSignal(func(os.Signal) {
		cmd.Interrupted()
	}, os.Interrupt, syscall.SIGTERM)

	memguard.SafeExit(cmd.Execute())
}
