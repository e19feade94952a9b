package main

import "github.com/Togather-Foundation/tablon/cmd/server/cmd"

func main() {
	cmd.Execute()
}
