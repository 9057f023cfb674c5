package main

import "github.com/kozaktomas/reid-eval/cmd"

func main() {
	cmd.Execute()
}
