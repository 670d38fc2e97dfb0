package main

import "github.com/dpdb/dpdb-go/cmd/dpdb/cmd"

func main() {
	cmd.Execute()
}
