package main

import "proxyscout/internal/cli"

func main() {
	cli.Execute()
}
