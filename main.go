package main

import "github.com/codito/arey/cmd"

func main() {
	cmd.Execute()
}
