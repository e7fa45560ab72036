package main

import (
	"db-forge/cmd"
)

func main() {
	cmd.Execute()
}
