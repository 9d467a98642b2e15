package main

import "equity-analyst/internal/cli"

func main() {
	cli.Execute()
}
