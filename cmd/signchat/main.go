package main

import (
	"os"

	"github.com/hurricanerix/signchat/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
