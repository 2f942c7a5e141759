package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1   // upstream, cache or internal failures
	ExitUsage     = 2   // bad height, flags, config or markup
	ExitNotFound  = 3   // block or file does not exist
	ExitInterrupt = 130 // SIGINT, as shells expect
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupt
	}
	switch bwerrors.GetCode(err) {
	case bwerrors.ErrCodeInvalidInput, bwerrors.ErrCodeInvalidHeight, bwerrors.ErrCodeInvalidSize,
		bwerrors.ErrCodeInvalidMarkup, bwerrors.ErrCodeInvalidColor, bwerrors.ErrCodeInvalidConfig,
		bwerrors.ErrCodeUnsupported:
		return ExitUsage
	case bwerrors.ErrCodeNotFound:
		return ExitNotFound
	}
	return ExitFailure
}

// ReportError writes err to w as "error: <message> [CODE]", with a hint for
// codes the user can act on. Interrupts print nothing.
func ReportError(w io.Writer, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	code := bwerrors.GetCode(err)
	if code == "" {
		fmt.Fprintf(w, "%s %s\n", styleIconError.Render(iconError), err)
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", styleIconError.Render(iconError), bwerrors.UserMessage(err), StyleDim.Render("["+string(code)+"]"))
	if hint := errorHint(code); hint != "" {
		fmt.Fprintf(w, "  %s\n", StyleDim.Render(hint))
	}
}

func errorHint(code bwerrors.Code) string {
	switch code {
	case bwerrors.ErrCodeInvalidConfig:
		return "check config.toml (see --config) or pass --source-file"
	case bwerrors.ErrCodeUnauthorized:
		return "the block data service rejected the API key; set " + envAPIKey
	case bwerrors.ErrCodeRateLimited:
		return "the block data service is rate limiting; retry later or enable the cache"
	case bwerrors.ErrCodeNetwork, bwerrors.ErrCodeTimeout:
		return "the block data service is unreachable; try --source-file for offline data"
	}
	return ""
}
