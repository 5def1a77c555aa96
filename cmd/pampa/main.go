package main

import (
	"fmt"
	"os"

	"github.com/pampa-ai/pampa/cmd/pampa/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
