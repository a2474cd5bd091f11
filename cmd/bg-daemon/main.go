package main

import "go-bg-daemon/cmd/bg-daemon/cmd"

func main() {
	cmd.Execute()
}
