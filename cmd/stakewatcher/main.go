package main

import (
	"stake-mirror-watch/internal/cli"
)

func main() {
	cli.Execute()
}
