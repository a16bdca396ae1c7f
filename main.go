package main

import "github.com/killerciao/CoomerDLEnhanced/cmd"

func main() {
	cmd.Execute()
}
