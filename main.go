package main

import "github.com/RyanBlaney/eeg-capture/cmd"

func main() {
	cmd.Execute()
}
