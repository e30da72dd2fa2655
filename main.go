package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mneves75/z-image-go/cmd"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
