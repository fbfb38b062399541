// Package main is the entry point for the ledgerdesk back-office service.
package main

func main() {
	Execute()
}
