package main

import (
	"os"

	"github.com/funvill/cultural-archiver-sub007/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
