// Command secantmin serves the minimization API and solves single problems
// from the command line.
//
// Usage:
//
//	secantmin serve --http_addr 127.0.0.1:8000
//	secantmin solve --fx "16/x + 2*x**2" --a 0.5 --b 5 --tol 1e-4 --output table
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
