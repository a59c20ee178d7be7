package main

import "gmxup/internal/cli"

func main() {
	cli.Execute()
}
