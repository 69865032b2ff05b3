package main

import "github.com/earosenfeld/clausi-cli/internal/cli"

func main() {
	cli.Execute()
}
