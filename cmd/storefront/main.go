package main

import "github.com/fjod/go_cart/storefront/internal/cmd"

func main() {
	cmd.Execute()
}
