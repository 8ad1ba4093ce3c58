package main

import "python-buildpack/internal/cli"

func main() {
	cli.Execute()
}
