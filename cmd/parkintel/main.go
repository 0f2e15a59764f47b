package main

import (
	"parkintel/cmd/cmd"
)

func main() {
	cmd.Execute()
}
