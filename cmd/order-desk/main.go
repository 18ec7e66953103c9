package main

import "github.com/upb/order-desk/internal/cli"

func main() {
	cli.Execute()
}
