package main

import "github.com/wawrzek/carbon-multi-resize/cmd"

func main() {
	cmd.Execute()
}
