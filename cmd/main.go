package main

import "github.com/dyike/CortexResearch/internal/cli"

func main() {
	cli.Run()
}
