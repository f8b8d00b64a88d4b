package main

import "axewatch/internal/cli"

func main() {
	cli.Execute()
}
