package main

import (
	"fmt"
	"log"
	"os"

	"github.com/floatrig/floatrig/internal/buildinfo"
)

func main() {
	log.Printf("floatrig %s (%s) starting", buildinfo.Version, buildinfo.GitCommit)

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
