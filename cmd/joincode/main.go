package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/app"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/joincode"
	"github.com/stemsi/exstem-grading/internal/logger"
	"github.com/stemsi/exstem-grading/internal/response"
)

func main() {
	var (
		count  int
		decode string
	)
	flag.IntVar(&count, "count", 0, "Print N fresh join codes checked against the record store")
	flag.StringVar(&decode, "decode", "", "Print the seed a join code was generated from")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	switch {
	case decode != "":
		codec, err := joincode.NewCodec(cfg.JoinCodeAlphabet, cfg.JoinCodeLength, app.JoinCodeConfig(cfg).Keys)
		if err != nil {
			fail(log, err, "Invalid join code settings")
		}
		seed, err := codec.Decode(decode)
		if err != nil {
			fail(log, err, "Decode failed")
		}
		fmt.Printf("%s -> %d\n", codec.Normalize(decode), seed)

	case count > 0:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, closeStore, err := app.OpenStore(ctx, cfg, log)
		if err != nil {
			fail(log, err, "Failed to open record store")
		}
		defer closeStore()

		gen, err := joincode.NewGenerator(app.JoinCodeConfig(cfg), store, log)
		if err != nil {
			fail(log, err, "Invalid join code settings")
		}
		for range count {
			code, err := gen.Generate(ctx)
			if err != nil {
				fail(log, err, "Generate failed")
			}
			fmt.Println(code)
		}

	default:
		printUsage()
	}
}

func fail(log zerolog.Logger, err error, msg string) {
	log.Error().
		Err(err).
		Str("code", string(response.CodeOf(err))).
		Msg(msg)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Usage: joincode [flags]")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
