package main

import "github.com/iksnae/cre-chat/cmd"

func main() {
	cmd.Execute()
}
