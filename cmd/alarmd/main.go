package main

import "github.com/oshokin/wake-alarm/cmd/alarmd/cmd"

func main() {
	cmd.Execute()
}
