package main

import "github.com/zfogg/solfeed/internal/cmd"

func main() {
	cmd.Execute()
}
