package main

import (
	"github.com/drone-os/itmsink/cmd"
)

func main() {
	cmd.Execute()
}
