package main

import "github.com/hurou927/hydro-catalog/cmd"

func main() {
	cmd.Execute()
}
