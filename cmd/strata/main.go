package main

import "github.com/strataorm/strata/cmd/strata/commands"

func main() {
	commands.Execute()
}
