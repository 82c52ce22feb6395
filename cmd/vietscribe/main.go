package main

import (
	"context"
	"fmt"
	"os"

	"vietscribe-go/cmd/vietscribe/commands"
)

func main() {
	if err := commands.Root.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "vietscribe: %v\n", err)
		os.Exit(1)
	}
}
