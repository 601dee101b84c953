// Command bundle-function evaluates one function input document read from
// stdin and writes the output document to stdout.
package main

import (
	"bufio"
	"log/slog"
	"os"

	"github.com/xenking/bundle-discount/internal/function"
)

func main() {
	out := bufio.NewWriter(os.Stdout)
	if err := function.Run(bufio.NewReader(os.Stdin), out); err != nil {
		slog.Error("evaluate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := out.Flush(); err != nil {
		slog.Error("flush output", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
