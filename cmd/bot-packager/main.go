package main

import "github.com/oshuvalov/bot-deployer/cmd/bot-packager/cmd"

func main() {
	cmd.Execute()
}
