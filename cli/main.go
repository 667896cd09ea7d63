package main

import "github.com/ponyo877/roomchat/cli/cmd"

func main() {
	cmd.Execute()
}
