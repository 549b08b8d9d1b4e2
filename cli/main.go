package main

import "southwinds.dev/signet/cli/cmd"

func main() {
	cmd.Execute()
}
