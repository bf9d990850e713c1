package main

import "github.com/sw33tLie/evscope/cmd"

func main() {
	cmd.Execute()
}
