// Package pairsfile reads benchmark pair lists from plain text files.
//
// Each non-blank line holds "<image0> <image1> <label>". Fields may be
// separated by whitespace or commas; lines starting with '#' are comments.
package pairsfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/okian/kidnapped/internal/domain/pairs"
)

// Reader is a pairs.Source backed by a pair list file.
type Reader struct {
	path string
}

var _ pairs.Source = (*Reader)(nil)

// New returns a reader for the file at path.
func New(path string) *Reader {
	return &Reader{path: path}
}

// Path returns the file the reader loads from.
func (r *Reader) Path() string { return r.path }

// Pairs opens the file and parses every pair in it.
func (r *Reader) Pairs(ctx context.Context) ([]pairs.Pair, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open pair list: %w", err)
	}
	defer f.Close()

	out, err := Parse(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.path, err)
	}
	return out, nil
}

// Parse reads pairs from src in line order.
func Parse(ctx context.Context, src io.Reader) ([]pairs.Pair, error) {
	var out []pairs.Pair
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		p, err := parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan pair list: %w", err)
	}
	return out, nil
}

func parseLine(text string) (pairs.Pair, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 3 {
		return pairs.Pair{}, fmt.Errorf("%w: expected 3 fields, got %d", pairs.ErrDataIntegrity, len(fields))
	}

	label, err := strconv.Atoi(fields[2])
	if err != nil {
		return pairs.Pair{}, fmt.Errorf("%w: label %q is not an integer", pairs.ErrDataIntegrity, fields[2])
	}
	if err := pairs.ValidateLabel(label); err != nil {
		return pairs.Pair{}, err
	}

	return pairs.Pair{Query: fields[0], Peer: fields[1], Label: label}, nil
}
