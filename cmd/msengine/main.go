package main

import "market-state-engine/internal/cli"

func main() {
	cli.Execute()
}
