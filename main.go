package main

import "github.com/deploymenttheory/go-emutos-install/cmd"

func main() {
	cmd.Execute()
}
