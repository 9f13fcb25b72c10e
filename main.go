package main

import "github.com/richinsley/kindabridge/cmd"

func main() {
	cmd.Execute()
}
