package main

import "github.com/LeJamon/goXRPLdig/internal/cli"

func main() {
	cli.Execute()
}
