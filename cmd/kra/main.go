package main

import (
	"os"

	"github.com/mlabs/kra_sdk_go/cmd/kra/app"
)

func main() {
	if err := app.Execute(); err != nil {
		os.Exit(1)
	}
}
