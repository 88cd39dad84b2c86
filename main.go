package main

import (
	"os"

	"github.com/tanpawarit/bizlens/cmd"
	_ "github.com/tanpawarit/bizlens/pkg/logger/autoload"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
