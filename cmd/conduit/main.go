package main

import (
	"os"

	"github.com/hashicorp-forge/conduit/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
