package main

import "github.com/dpla/fieldmap/cmd"

func main() {
	cmd.Execute()
}
