// Command imgvault is the Command Gateway's CLI front end: one
// subcommand per gateway command (spec §6), each reading a JSON
// payload from stdin and writing a JSON envelope to stdout.
package main

import (
	"log"
	"os"

	"github.com/ZiyanaliSaiyed/GraphiVault/internal/imgvaultcmd"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("[imgvault] ")

	os.Exit(imgvaultcmd.Execute(os.Args[1:]))
}
