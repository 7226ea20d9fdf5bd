package main

import "github.com/vietddude/landplan/internal/cli"

func main() {
	cli.Execute()
}
