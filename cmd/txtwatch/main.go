// txtwatch tracks text files and follows their changes on disk.
package main

import (
	"os"

	"github.com/hupe1980/txtwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
