package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/msgwire/internal/observability"
)

func main() {
	observability.InitLogger("wirectl")
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintf(os.Stderr, "wirectl: %v\n", err)
		}
		os.Exit(1)
	}
}

const usage = `usage: wirectl [-config path] [-schema file]... <command> [flags]

commands:
  schemas                                   list loaded schemas
  validate -type T -in file.json|yaml       check a document against T
  encode   -type T -in file -out file.bin   encode a document (-delimited for a JSON array)
  decode   -type T -in file.bin             decode to -format json|text (-delimited for streams)
  inspect  -in file.bin                     dump raw wire fields without a schema
  init     -kind config|schema -out path    write a starter file
`

func printUsage(w io.Writer) {
	fmt.Fprint(w, usage)
}
