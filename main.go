package main

import "github.com/stevehiehn/deployseq/cmd"

func main() {
	cmd.Execute()
}
