// Command paperboy crawls People's Daily issues for article URLs.
package main

import (
	"os"

	"github.com/BenjaminSRussell/paperboy/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
