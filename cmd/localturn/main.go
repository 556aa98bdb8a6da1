// localturn runs conversation turns in-process on WAV files, without the
// HTTP or gRPC servers, and writes each reply next to the output prefix.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"virtual-secretary/internal/app"
	"virtual-secretary/internal/config"
	"virtual-secretary/internal/service/audio"
	"virtual-secretary/internal/service/conversation"
)

func main() {
	out := flag.String("out", "reply", "Output prefix; turn n is written to <out>-<n>.wav")
	language := flag.String("language", "", "Language hint, e.g. en or it")
	noHistory := flag.Bool("no-history", false, "Answer each file without conversation history")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: localturn [flags] file.wav [file.wav ...]")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Could not load .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	application, err := app.New(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}
	defer application.Shutdown()

	session := application.Sessions.Create()
	for i, path := range flag.Args() {
		opts := conversation.TurnOptions{
			UseHistory: !*noHistory,
			Language:   *language,
			OutputPath: fmt.Sprintf("%s-%d.wav", *out, i+1),
		}
		res, err := application.Sessions.HandleTurn(ctx, session.ID, audio.FromFile(path), opts)
		if res == nil {
			log.Fatal().Err(err).Msg("turn failed")
		}

		fmt.Printf("[%s] %s\n", res.TurnID, res.State)
		if res.State == conversation.StateErrored {
			fmt.Printf("  secretary: %s\n  (%v)\n", conversation.CouldNotHearMessage, res.Err)
			continue
		}
		fmt.Printf("  you:       %s\n  secretary: %s\n", res.UserText, res.AssistantText)
		switch {
		case res.Degraded:
			fmt.Printf("  no audio: %v\n", res.Err)
		case res.Err != nil:
			fmt.Printf("  audio not saved: %v\n", res.Err)
		default:
			fmt.Printf("  audio:     %s (%.1fs)\n", opts.OutputPath, res.Audio.Duration().Seconds())
		}
	}
}
