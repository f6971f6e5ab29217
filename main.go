package main

import "mxfedl/cmd"

func main() {
	cmd.Execute()
}
