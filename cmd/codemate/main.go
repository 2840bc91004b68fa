package main

import "github.com/gsarma/codemate/internal/cli"

func main() {
	cli.Execute()
}
