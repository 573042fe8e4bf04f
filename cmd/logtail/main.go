// Command logtail prints the end of the bot's structured log, following
// rotated files transparently. It is the operator's answer to "what did the
// bot just do": the last n entries, the last n errors, or a live follow.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arendabot/arendabot/internal/inspect"
)

func main() {
	path := flag.String("path", "logs/bot.log", "Live log file (rotated siblings are found next to it)")
	n := flag.Int("n", 50, "Number of entries to print")
	follow := flag.Bool("follow", false, "Keep printing entries as they are appended")
	followF := flag.Bool("f", false, "Keep printing entries as they are appended (shorthand)")
	errsOnly := flag.Bool("errors", false, "Print only the last n error entries")
	errsOnlyE := flag.Bool("e", false, "Print only the last n error entries (shorthand)")
	flag.Parse()

	ins := inspect.New(*path)

	var err error
	switch {
	case *errsOnly || *errsOnlyE:
		// One-shot even when -f is also given: errors are a question about
		// the past, not a stream.
		err = printTail(ins, *n, inspect.ErrorsOnly)
	case *follow || *followF:
		err = followLog(ins, *n)
	default:
		err = printTail(ins, *n, nil)
	}

	if err == nil {
		return
	}
	if errors.Is(err, inspect.ErrNoLog) {
		fmt.Fprintf(os.Stderr, "logtail: no log at %s\n", *path)
		return
	}
	fmt.Fprintln(os.Stderr, "logtail:", err)
	os.Exit(1)
}

func printTail(ins *inspect.Inspector, n int, keep inspect.Filter) error {
	entries, err := ins.Tail(n, keep)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Println(e.String())
	}
	return nil
}

func followLog(ins *inspect.Inspector, n int) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	return ins.Follow(ctx, n, func(e inspect.Entry) error {
		_, err := fmt.Println(e.String())
		return err
	})
}
