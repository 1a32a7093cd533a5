package main

import "github.com/Norgate-AV/scracc/cmd"

func main() {
	cmd.Execute()
}
