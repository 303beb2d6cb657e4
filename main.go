package main

import (
	"github.com/sidkik/savesync/cmd"
	"github.com/sidkik/savesync/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
