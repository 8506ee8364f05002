package main

import "mempool-sniper/internal/cli"

func main() {
	cli.Execute()
}
