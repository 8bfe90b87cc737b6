package main

import "github.com/kmcaloon/groqcache/cmd"

func main() {
	cmd.Execute()
}
