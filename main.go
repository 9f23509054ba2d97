// Idiomatic entrypoint for the Cobra CLI; delegates to the root command in cmd/root.go.

package main

import (
	"github.com/fleetsim/fleetsim/cmd"
)

func main() {
	cmd.Execute()
}
