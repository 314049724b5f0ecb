package main

import "github.com/fakeyudi/linewheel/cmd"

func main() {
	cmd.Execute()
}
