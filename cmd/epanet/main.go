package main

import (
	"fmt"
	"os"

	"github.com/milad-ghiami/EPANET/toolkit"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if code := toolkit.ErrorCode(err); code > 0 {
			fmt.Fprintf(os.Stderr, "epanet: error %d: %v\n", code, err)
		} else {
			fmt.Fprintf(os.Stderr, "epanet: %v\n", err)
		}
		os.Exit(1)
	}
}
