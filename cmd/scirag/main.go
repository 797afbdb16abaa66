package main

import "scirag/internal/cli"

func main() {
	cli.Execute()
}
