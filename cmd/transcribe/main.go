package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Juicern/local-asr/internal/client"
	"github.com/Juicern/local-asr/internal/domain"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("ASR_SERVER_URL", "http://localhost:9000"), "transcription server base URL")
	language := flag.String("language", "", "language hint, or auto")
	timestamps := flag.String("timestamps", "", "timestamp granularity: word, segment or none")
	chunk := flag.Int("chunk", 0, "chunk length in seconds")
	stride := flag.Int("stride", 0, "stride length in seconds")
	raw := flag.Bool("json", false, "print the raw JSON response")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] FILE...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(*addr, nil)
	opts := client.Options{
		Language:         *language,
		ReturnTimestamps: *timestamps,
		ChunkLengthS:     *chunk,
		StrideLengthS:    *stride,
	}

	failed := 0
	for i, path := range flag.Args() {
		started := time.Now()
		logrus.WithField("file", path).Debugf("uploading to %s", *addr)
		transcript, body, err := c.Transcribe(ctx, path, opts)
		if err != nil {
			failed++
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				logrus.WithField("status", apiErr.StatusCode).Errorf("[%d/%d] %s: %s", i+1, flag.NArg(), path, apiErr.Message)
			} else {
				logrus.Errorf("[%d/%d] %s: %v", i+1, flag.NArg(), path, err)
			}
			continue
		}
		logrus.WithField("file", path).Debugf("transcribed in %s", time.Since(started))

		if *raw {
			fmt.Println(string(body))
			continue
		}
		printTranscript(i+1, flag.NArg(), path, transcript, time.Since(started))
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func printTranscript(n, total int, path string, t domain.Transcript, took time.Duration) {
	color.Cyan("[%d/%d] %s (%s, %s, %s)", n, total, path, t.Model, t.Language, took.Round(time.Millisecond))
	for _, s := range t.Segments {
		fmt.Printf("%s %s\n", color.YellowString("[%8.2f -> %8.2f]", s.Start, s.End), s.Text)
	}
	if t.Text == "" {
		color.HiBlack("(no speech)")
		return
	}
	color.Green("%s", t.Text)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
