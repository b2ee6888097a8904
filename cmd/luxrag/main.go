// Command luxrag is the entry point for the LuxRAG research assistant.
// It provides a CLI (via Cobra) for corpus ingestion and one-shot questions,
// plus an HTTP server exposing a streaming query API.
package main

import (
	"fmt"
	"os"

	"github.com/luxweb/luxrag-go/cmd/luxrag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
