package main

import (
	"pricescout-backend/cmd/pricescout/commands"
	"pricescout-backend/pkg/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
