package main

// main is the entry point for the subzilla application. Execute (root.go)
// sets up the cobra command tree; error printing and the exit code are
// handled there.
func main() {
	Execute()
}
