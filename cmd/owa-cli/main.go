package main

import (
	"context"
	"owascrape/cmd/owa-cli/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
