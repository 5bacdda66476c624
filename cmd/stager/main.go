package main

import "github.com/vietddude/stager/internal/cli"

func main() {
	cli.Execute()
}
