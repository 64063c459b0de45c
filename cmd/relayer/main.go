package main

import (
	"github.com/ambridge-relay/relayer/cli"
)

func main() {
	cli.NewRootCommand().Execute()
}
