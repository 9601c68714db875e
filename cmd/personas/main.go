// Command personas prints the persona catalog as YAML. The output is a valid
// PERSONAS_FILE and is the usual starting point for a custom catalog.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/eldtechnologies/teamroom/internal/persona"
)

func main() {
	from := flag.String("from", "", "validate and re-emit this catalog file instead of the built-in one")
	flag.Parse()

	reg := persona.Default()
	if *from != "" {
		var err error
		reg, err = persona.LoadFile(*from)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}

	if err := reg.Encode(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
