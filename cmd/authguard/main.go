package main

import "github.com/ppiankov/authguard/internal/cli"

func main() {
	cli.Execute()
}
