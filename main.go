package main

import "github.com/skalenetwork/ima-agent/cmd"

func main() {
	cmd.Execute()
}
