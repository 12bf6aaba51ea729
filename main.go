// Public domain.

package main

import "github.com/soniakeys/kbpost/internal/kbprog"

func main() {
	kbprog.Main()
}
