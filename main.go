package main

import "github.com/Mohsinsiddi/w3mint/cmd"

func main() {
	cmd.Execute()
}
