package main

import cmd "github.com/inference-gateway/adgate/cmd"

func main() {
	cmd.Execute()
}
