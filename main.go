package main

import "github.com/derickschaefer/challan/cmd"

func main() {
	cmd.Execute()
}
