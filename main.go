// Package main is the entry point for the drq CLI.
package main

import "drq.dev/pkg/drq/cmd"

func main() {
	cmd.Execute()
}
