// Command fondsolve synthesizes strong-cyclic policies for fully observable
// non-deterministic planning problems described in YAML.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	fond "github.com/gxo-labs/fondsolve/pkg/fond/v1"
)

const (
	ExitSuccess    = 0
	ExitFailure    = 1
	ExitUsageError = 2
	ExitDisproven  = 3
	ExitTimeout    = 124
	ExitSigIntBase = 128
	ExitSigInt     = ExitSigIntBase + int(syscall.SIGINT)
	ExitSigTerm    = ExitSigIntBase + int(syscall.SIGTERM)
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries a process exit code out of a command. A nil err means the
// command already reported what happened.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: ExitUsageError, err: err}
}

// resultExitCode maps a solve verdict to the process exit code.
func resultExitCode(r fond.Result) int {
	switch r {
	case fond.ResultProven:
		return ExitSuccess
	case fond.ResultDisproven:
		return ExitDisproven
	case fond.ResultTimeout:
		return ExitTimeout
	default:
		return ExitFailure
	}
}

// run executes the CLI with args and returns the process exit code. SIGINT
// and SIGTERM cancel the running command.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var receivedSignal os.Signal
	var sigMu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case sig := <-sigChan:
			fmt.Fprintf(stderr, "Received signal: %v. Cancelling...\n", sig)
			sigMu.Lock()
			receivedSignal = sig
			sigMu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	cancel()
	wg.Wait()
	signal.Stop(sigChan)

	sigMu.Lock()
	sig := receivedSignal
	sigMu.Unlock()
	return determineExitCode(err, sig, stderr)
}

func determineExitCode(err error, sig os.Signal, stderr io.Writer) int {
	if sig != nil {
		switch sig {
		case syscall.SIGINT:
			return ExitSigInt
		case syscall.SIGTERM:
			return ExitSigTerm
		}
	}
	if err == nil {
		return ExitSuccess
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", exitErr.err)
		}
		if exitErr.code == ExitUsageError {
			fmt.Fprintln(stderr, "Run 'fondsolve --help' for usage.")
		}
		return exitErr.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	// cobra reports unknown subcommands as plain errors.
	if strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintln(stderr, "Run 'fondsolve --help' for usage.")
		return ExitUsageError
	}
	return ExitFailure
}
