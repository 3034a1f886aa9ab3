package main

import (
	"hentai-fetcher/cmd/hentai-fetcher/cmd"
)

func main() {
	cmd.Execute()
}
