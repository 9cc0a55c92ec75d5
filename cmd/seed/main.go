package main

import (
	"errors"
	"fmt"
	"os"

	tool "github.com/movian/movian-api/internal/tools/seed"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		if !errors.Is(err, tool.ErrCommandFailed) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		os.Exit(3)
	}
}
