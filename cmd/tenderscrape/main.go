package main

import (
	"context"
	"os"
	"tenderscrape/cmd/tenderscrape/commands"
	"tenderscrape/lib/osutil"
)

func main() {
	ctx, cancel := osutil.SignalContext(context.Background())
	code := commands.ExecuteContext(ctx)
	cancel()
	os.Exit(code)
}
