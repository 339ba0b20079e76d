package main

import (
	"boledger/cmd/boledger/commands"
	"boledger/internal/components/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext()
	commands.ExecuteContext(ctx)
}
