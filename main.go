// The main package for the campuscrawl executable.
package main

import (
	"github.com/campuscrawl/campuscrawl/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
