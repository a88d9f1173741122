// Command imgvaultd is the session daemon: it keeps vault sessions in
// memory, one per vault path, and serves unlock, lock, touch, status and
// get_keys requests over a UNIX socket. imgvault mirrors its successful
// unlock and lock commands to it, but the gateway does not read sessions
// or keys back from it, so each imgvault gateway call still starts with
// a locked vault.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZiyanaliSaiyed/GraphiVault/sessiond"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("[imgvaultd] ")

	socketPath := sessiond.DefaultSocketPath()
	if len(os.Args) > 1 {
		socketPath = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := sessiond.NewServer(socketPath, os.Getuid())

	log.Printf("listening on %s", socketPath)

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("daemon exited: %v", err)
	}

	log.Println("shut down cleanly")
}
