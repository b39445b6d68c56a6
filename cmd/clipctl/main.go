package main

import "github.com/clipdot/clipd/internal/cli"

func main() {
	cli.Execute()
}
