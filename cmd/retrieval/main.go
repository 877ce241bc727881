// Package main provides the entry point for the retrieval CLI.
package main

import (
	"os"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/cmd/retrieval/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
