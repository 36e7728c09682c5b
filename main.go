package main

import "github.com/fleetform/tplsync/cmd"

func main() {
	cmd.Execute()
}
