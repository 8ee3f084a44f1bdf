package conf

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
)

// NewEnvExpandedReader returns a reader with ${VAR} and $VAR references
// replaced by their environment values.
func NewEnvExpandedReader(r io.Reader) io.Reader {
	data, err := io.ReadAll(r)
	if err != nil {
		return &errReader{err}
	}

	expanded := os.ExpandEnv(string(data))
	return bytes.NewReader([]byte(expanded))
}

type errReader struct {
	err error
}

func (r *errReader) Read(p []byte) (int, error) {
	return 0, r.err
}

// LoadDotEnv sets KEY=VALUE pairs from the file without overriding
// variables already present in the environment. A missing file is ignored.
func LoadDotEnv(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if _, exists := os.LookupEnv(key); exists {
			continue
		}

		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}

	return scanner.Err()
}
