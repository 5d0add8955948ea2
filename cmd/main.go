package main

import (
	cmd "github.com/mebx/contentsync/cmd/contentsync"
)

func main() {
	cmd.Execute()
}
