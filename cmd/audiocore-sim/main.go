// audiocore-sim drives the TX/RX audiocore pipelines against an
// in-process simulated link, exercising every processing stage without
// a real codec or radio.
package main

import (
	"fmt"
	"os"

	"github.com/sparkmicro/audiocore/cmd/audiocore-sim/cmd"
	"github.com/sparkmicro/audiocore/internal/config"
)

func main() {
	settings := &config.Settings{}
	if err := cmd.RootCommand(settings).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
