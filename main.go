// bgv inspects BGV compiler-graph dumps.
//
// It lists the graphs in a dump, prints their properties, places floating
// nodes into the control-flow graph, and keeps an index of dump directories
// up to date while a compiler writes them.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/bgv-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
