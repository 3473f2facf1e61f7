package main

import "github.com/MeKo-Tech/noiseloops/internal/cmd"

func main() {
	cmd.Execute()
}
