package main

import "github.com/agentic-research/propfeat/cmd"

func main() {
	cmd.Execute()
}
