package main

import "github.com/khaledhikmat/vs-face/cmd"

func main() {
	cmd.Execute()
}
