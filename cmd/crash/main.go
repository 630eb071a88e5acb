package main

import "crash/internal/cli"

func main() {
	cli.Execute()
}
