package main

import "github.com/cellcare/cellcare_backend/cmd"

func main() {
	cmd.Execute()
}
