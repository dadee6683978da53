package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"audio-compressor/internal/scratch"
	"audio-compressor/internal/startup"
	"audio-compressor/internal/transcoder"
)

func main() {
	// Create a context that cancels on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stdout)
		return 1
	}

	config, err := startup.ReadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid configuration: %v\n", err)
		return 1
	}

	switch command := args[0]; command {
	case "status":
		return showStatus(config, stdout, stderr)
	case "purge":
		return purge(config, stdout, stderr)
	case "compress":
		if len(args) != 3 {
			fmt.Fprintln(stderr, "Error: compress needs an input and an output path")
			printUsage(stdout)
			return 1
		}
		return compress(ctx, config, args[1], args[2], stdout, stderr)
	default:
		// Sanitize command input using allowlist to break taint chain
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(stdout)
		return 1
	}
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Audio Compressor Scratch Utility")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: scratchctl <command> [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  status            - Show scratch usage and ffmpeg availability")
	fmt.Fprintln(w, "  purge             - Remove orphaned scratch files (server must be stopped)")
	fmt.Fprintln(w, "  compress IN OUT   - Transcode IN to OUT with the speech profile")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  SCRATCH_DIR, FFMPEG_PATH, FFPROBE_PATH, TRANSCODE_TIMEOUT (see server docs)")
}

func newTranscoder(config *startup.Config) *transcoder.Transcoder {
	return transcoder.New(transcoder.Config{
		FFmpegPath:    config.FFmpegPath,
		FFprobePath:   config.FFprobePath,
		Timeout:       config.TranscodeTimeout,
		MaxConcurrent: 1,
		VerifyOutput:  config.VerifyOutput,
	})
}

func showStatus(config *startup.Config, stdout, stderr io.Writer) int {
	store, err := scratch.New(config.ScratchDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	stats := store.GetStats()
	fmt.Fprintf(stdout, "Scratch dir:  %s\n", store.Dir())
	fmt.Fprintf(stdout, "Files:        %d (%s)\n", stats.Files, humanize.IBytes(uint64(stats.Bytes)))

	if err := store.CheckWritable(); err != nil {
		fmt.Fprintf(stdout, "Writable:     no (%v)\n", err)
	} else {
		fmt.Fprintln(stdout, "Writable:     yes")
	}

	if err := newTranscoder(config).Ready(); err != nil {
		fmt.Fprintf(stdout, "ffmpeg:       unavailable (%v)\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "ffmpeg:       %s\n", config.FFmpegPath)
	return 0
}

func purge(config *startup.Config, stdout, stderr io.Writer) int {
	store, err := scratch.New(config.ScratchDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	removed, err := store.Purge()
	fmt.Fprintf(stdout, "Removed %d scratch files from %s\n", removed, store.Dir())
	if err != nil {
		fmt.Fprintf(stderr, "Error: some files could not be removed: %v\n", err)
		return 1
	}
	return 0
}

func compress(ctx context.Context, config *startup.Config, in, out string, stdout, stderr io.Writer) int {
	inInfo, err := os.Stat(in)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	absOut, err := filepath.Abs(out)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	result, err := newTranscoder(config).Transcode(ctx, transcoder.Job{
		InputPath:  in,
		OutputPath: absOut,
		Profile:    transcoder.SpeechProfile,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	reduction := 0.0
	if inInfo.Size() > 0 {
		reduction = (1 - float64(result.OutputSize)/float64(inInfo.Size())) * 100
	}
	fmt.Fprintf(stdout, "%s -> %s: %s -> %s (%.1f%% smaller) in %v\n",
		in, absOut,
		humanize.IBytes(uint64(inInfo.Size())),
		humanize.IBytes(uint64(result.OutputSize)),
		reduction, result.Duration.Round(time.Millisecond))
	return 0
}
