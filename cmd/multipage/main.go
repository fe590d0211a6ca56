// Command multipage runs, serves and inspects page-graph wizards.
package main

func main() {
	Execute()
}
