package main

import "edasetup/internal/cli"

func main() {
	cli.Execute()
}
