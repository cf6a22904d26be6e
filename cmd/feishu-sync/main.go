package main

import "github.com/wikibridge/feishu-sync/cmd/feishu-sync/cmd"

func main() {
	cmd.Execute()
}
