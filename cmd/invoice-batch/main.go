package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/qb-bastiaan/invoice-processor-app/internal/controller"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "base URL of the invoiced server")
		start     = flag.Int("start", 0, "index to start processing from")
		auto      = flag.Bool("auto", false, "process the whole batch without pausing between documents")
	)
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := controller.New(*serverURL, logger)
	if !*auto {
		stdin := bufio.NewReader(os.Stdin)
		c.Accept = func(ctx context.Context, outcome controller.Outcome) (bool, error) {
			fmt.Printf("%s\n", outcome.Message)
			fmt.Print("Continue with next file? [Y/n] ")
			line, err := stdin.ReadString('\n')
			if err != nil {
				return false, err
			}
			answer := strings.ToLower(strings.TrimSpace(line))
			return answer == "" || answer == "y" || answer == "yes", nil
		}
	}

	summary, err := c.Run(ctx, *start)
	if err != nil {
		printError("Batch failed after %d file(s): %v\n", summary.ProcessedCount, err)
		os.Exit(1)
	}

	if summary.Stopped {
		fmt.Printf("Batch stopped by operator after %d of %d file(s).\n", summary.ProcessedCount, summary.TotalFiles)
		return
	}
	fmt.Printf("Batch complete: %d file(s) processed.\n", summary.ProcessedCount)
}
