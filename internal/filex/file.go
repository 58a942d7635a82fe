package filex

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrTooLarge is returned when a file exceeds the allowed size.
var ErrTooLarge = errors.New("file too large")

// ReadLimited reads the whole file at path, refusing anything larger than
// max bytes. A non-positive max disables the limit.
func ReadLimited(path string, max int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if max > 0 {
		r = io.LimitReader(f, max+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if max > 0 && int64(len(data)) > max {
		return nil, fmt.Errorf("%s: %w (limit %d bytes)", path, ErrTooLarge, max)
	}
	return data, nil
}
