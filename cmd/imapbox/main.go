package main

import "github.com/aaronromeo/imapbox/internal/cli"

func main() {
	cli.Execute()
}
