package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	apperrors "github.com/gstcheck/gstcheck/internal/errors"
	"github.com/gstcheck/gstcheck/internal/observability"
)

// exitInterrupted follows the shell convention for SIGINT (128 + 2).
const exitInterrupted foundry.ExitCode = 130

// ExitCodeFor maps a command error to its semantic exit code.
func ExitCodeFor(err error) foundry.ExitCode {
	if err == nil {
		return foundry.ExitCode(0)
	}
	if stderrors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	switch apperrors.Code(err) {
	case apperrors.CodeConfigInvalid:
		return foundry.ExitConfigInvalid
	case apperrors.CodeInvalidInput:
		return foundry.ExitFileNotFound
	case apperrors.CodeRateLimitExceeded:
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

// Exit reports err and terminates with the code ExitCodeFor assigns.
func Exit(err error) {
	code := ExitCodeFor(err)
	if code == exitInterrupted {
		fmt.Fprintln(os.Stderr, "interrupted")
		os.Exit(int(code))
	}
	msg := "Command failed"
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		msg = envelope.Message
	} else if err != nil {
		msg = err.Error()
	}
	ExitWithCode(observability.CLILogger, code, msg, err)
}

// ExitWithCode logs err with the foundry exit code metadata and exits.
// logger may be nil for failures before logging is set up.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}

	if logger == nil {
		writeFatal(msg, err)
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		os.Exit(info.Code)
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID))
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if original, ok := envelope.Original.(error); ok && original != nil {
			err = original
		}
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.Error(msg, fields...)
	_ = logger.Sync()

	os.Exit(info.Code)
}

// ExitWithCodeStderr is ExitWithCode without a logger.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	ExitWithCode(nil, exitCode, msg, err)
}

func writeFatal(msg string, err error) {
	var envelope *errors.ErrorEnvelope
	switch {
	case err == nil:
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	case stderrors.As(err, &envelope) && envelope != nil:
		fmt.Fprintf(os.Stderr, "FATAL: %s [%s]: %s\n", msg, envelope.Code, envelope.Message)
		if original, ok := envelope.Original.(error); ok && original != nil {
			fmt.Fprintf(os.Stderr, "Underlying error: %v\n", original)
		}
	default:
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	}
}
