package main

import "github.com/oshuvalov/bot-deployer/cmd/bot-deployer/cmd"

func main() {
	cmd.Execute()
}
