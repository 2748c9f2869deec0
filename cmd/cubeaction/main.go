// cube-action runs the cube tap demo: the robot finds its three light cubes
// and reacts to taps on each one with a different behavior.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cube-action:", err)
		os.Exit(1)
	}
}
