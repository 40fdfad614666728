package main

import (
	"github.com/evmstream/processor/cmd"
)

func main() {
	cmd.Execute()
}
