package app

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

func init() {
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		short := file
		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				short = file[i+1:]
				break
			}
		}
		file = short
		return file + ":" + strconv.Itoa(line)
	}
}

func (a *App) setLogger() error {
	var out io.Writer = os.Stdout
	if term.IsTerminal(int(os.Stdout.Fd())) {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	logger := zerolog.New(out).With().Caller().Timestamp().Logger()
	defer func() {
		a.Logger = logger
	}()

	val, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		return nil
	}

	lvl, err := zerolog.ParseLevel(val)
	if err == nil {
		logger = logger.Level(lvl)
	} else {
		logger.Err(err).Msgf("unknown LOG_LEVEL value: \"%s\"", val)
	}

	return nil
}
