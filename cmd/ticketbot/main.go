package main

import "github.com/spec-kit/ticket-bot/internal/cli"

func main() {
	cli.Execute()
}
