// Command loom is the command-line interface to the loom social graph.
package main

import "github.com/mesh-intelligence/loom/internal/cli"

func main() {
	cli.Execute()
}
