package main

import cmd "github.com/rohmanhakim/docsmith/internal/cli"

func main() {
	cmd.Execute()
}
