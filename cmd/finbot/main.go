package main

import "finbot/internal/cli"

func main() {
	cli.Execute()
}
