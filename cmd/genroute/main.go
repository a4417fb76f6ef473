package main

import "github.com/ogulcanaydogan/genroute/internal/cli"

func main() {
	cli.Execute()
}
