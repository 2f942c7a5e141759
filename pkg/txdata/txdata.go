package txdata

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
)

// ErrNotFound is returned when the source has no data for a block.
var ErrNotFound = errors.New("block not found")

// Source returns the transaction sizes of a block, one value per
// transaction, in the order the source lists them.
type Source interface {
	Values(ctx context.Context, height int64) ([]int64, error)
}

// Parse reads newline-delimited non-negative integers. CRLF line endings
// and blank lines are accepted; anything else is INVALID_INPUT.
func Parse(r io.Reader) ([]int64, error) {
	var values []int64
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, bwerrors.Wrap(bwerrors.ErrCodeInvalidInput, err, "line %d: not an integer", line)
		}
		if v < 0 {
			return nil, bwerrors.New(bwerrors.ErrCodeInvalidInput, "line %d: negative value %d", line, v)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, bwerrors.Wrap(bwerrors.ErrCodeInvalidInput, err, "read values")
	}
	return values, nil
}

// FileSource reads values from a local file. A "{height}" placeholder in
// Path is replaced by the requested block height, so one source can serve
// a directory of dumps.
type FileSource struct {
	Path string
}

// Values implements [Source].
func (f FileSource) Values(_ context.Context, height int64) ([]int64, error) {
	path := strings.ReplaceAll(f.Path, "{height}", strconv.FormatInt(height, 10))
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, bwerrors.Wrap(bwerrors.ErrCodeNotFound, ErrNotFound, "block %d: %s", height, path)
	}
	if err != nil {
		return nil, bwerrors.Wrap(bwerrors.ErrCodeInternal, err, "open %s", path)
	}
	defer file.Close()
	return Parse(file)
}
