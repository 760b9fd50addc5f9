// Package main is the single-binary entrypoint for pawpoints.
package main

import "github.com/lostpaws/pawpoints/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
