package system

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

type ShutdownHandler func()

// RegisterGracefulShutdownHandler runs handler once on SIGINT or SIGTERM.
// The returned function unregisters the signal listener.
func RegisterGracefulShutdownHandler(handler ShutdownHandler) func() {
	sigChannel := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigChannel, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChannel:
			log.Info().Msg("Received interrupt signal, shutting down gracefully...")
			handler()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigChannel)
		close(done)
	}
}
