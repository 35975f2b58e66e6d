package main

import "github.com/oshokin/home-alarm-central/cmd/alarm-central/cmd"

func main() {
	cmd.Execute()
}
