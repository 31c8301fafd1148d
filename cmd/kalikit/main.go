// Command kalikit runs external security tools under memory, time and
// network policy, from the command line or as an HTTP service.
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
