package main

import "github.com/oshokin/home-alarm-central/cmd/alarmctl/cmd"

func main() {
	cmd.Execute()
}
