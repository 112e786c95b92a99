package main

import "github.com/Digital-Shane/marquee/internal/cmd"

func main() {
	cmd.Execute()
}
