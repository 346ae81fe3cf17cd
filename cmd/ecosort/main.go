package main

import "ecosort/cmd/ecosort/commands"

func main() {
	commands.Execute()
}
