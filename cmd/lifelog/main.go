package main

import (
	"fmt"
	"os"

	"github.com/Syuney-mls/life-log/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "lifelog: %v\n", err)
		os.Exit(1)
	}
}
