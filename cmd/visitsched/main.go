package main

import "github.com/example/visitsched/cmd"

func main() {
	cmd.Execute()
}
