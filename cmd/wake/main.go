package main

import "github.com/llehouerou/wake/internal/cli"

func main() {
	cli.Execute()
}
