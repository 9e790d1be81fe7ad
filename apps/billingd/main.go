package main

import "github.com/comunidadednb/billing-service/internal/cli"

func main() {
	cli.Execute()
}
