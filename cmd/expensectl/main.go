// Command expensectl runs maintenance tasks against the expense approval store:
// schema migrations, finance exports and draft staging cleanup.
package main

func main() {
	Execute()
}
