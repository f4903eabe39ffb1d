package main

import "github.com/fgrehm/dcvet/cmd"

func main() {
	cmd.Execute()
}
