package main

import (
	"os"

	"horse.fit/opinio/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
