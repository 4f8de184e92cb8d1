package main

import (
	"github.com/robotalks/softuart/pkg/board"
	"github.com/robotalks/softuart/pkg/cli/sh"
)

//go-build: CGO_ENABLED=0

func init() {
	board.SetupFlags()
}

func main() {
	sh.Main()
}
