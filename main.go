package main

import "gatherinfo/cmd"

func main() {
	cmd.Execute()
}
