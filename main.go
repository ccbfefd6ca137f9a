package main

import (
	"os"

	"github.com/PeakJoy/gzxspider/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
