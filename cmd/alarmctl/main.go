package main

import "github.com/oshokin/wake-alarm/cmd/alarmctl/cmd"

func main() {
	cmd.Execute()
}
