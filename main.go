package main

import "github.com/encodeous/kevlar/cmd"

func main() {
	cmd.Execute()
}
