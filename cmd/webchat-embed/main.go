package main

import (
	"github.com/go-go-golems/webchat-embed/cmd/webchat-embed/cmds"
	"github.com/spf13/cobra"
)

func main() {
	err := cmds.NewRootCommand().Execute()
	cobra.CheckErr(err)
}
