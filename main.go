package main

import "github.com/icco/rhythmbox/cmd"

func main() {
	cmd.Execute()
}
