// Package logging holds the interactive log controls of long running commands.
package logging

import (
	"sync"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ShortcutStatusFN func() *zerolog.Event

var (
	statusHookMutex sync.RWMutex
	statusHook      ShortcutStatusFN
)

// RegisterStatusHook allows commands to register a custom status function
func RegisterStatusHook(hook ShortcutStatusFN) {
	statusHookMutex.Lock()
	defer statusHookMutex.Unlock()
	statusHook = hook
}

// GetStatusHook returns the registered status hook or a default one
func GetStatusHook() ShortcutStatusFN {
	statusHookMutex.RLock()
	defer statusHookMutex.RUnlock()
	if statusHook != nil {
		return statusHook
	}
	return defaultStatusHook
}

func defaultStatusHook() *zerolog.Event {
	return log.Info().Str("status", "nothing to show")
}

var shortcutLevels = map[string]zerolog.Level{
	"t": zerolog.TraceLevel,
	"d": zerolog.DebugLevel,
	"i": zerolog.InfoLevel,
	"w": zerolog.WarnLevel,
	"e": zerolog.ErrorLevel,
}

// HandleShortcut applies a single key press. It reports whether the key was bound.
func HandleShortcut(key string) bool {
	if level, ok := shortcutLevels[key]; ok {
		zerolog.SetGlobalLevel(level)
		log.Info().Str("logLevel", level.String()).Msg("New Log level")
		return true
	}

	if key == "s" {
		GetStatusHook()().Msg("Status")
		return true
	}

	return false
}

// ShortcutListeners blocks reading key presses until Ctrl+C or Escape.
func ShortcutListeners(status ShortcutStatusFN) {
	if status != nil {
		RegisterStatusHook(status)
	}

	err := keyboard.Listen(func(key keys.Key) (stop bool, err error) {
		switch key.Code {
		case keys.CtrlC, keys.Escape:
			return true, nil
		case keys.RuneKey:
			HandleShortcut(key.String())
		}

		return false, nil
	})

	if err != nil {
		log.Error().Err(err).Msg("Failed hooking keyboard bindings")
	}
}
