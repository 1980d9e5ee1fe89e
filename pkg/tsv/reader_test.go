package tsv

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_HeaderAndRows(t *testing.T) {
	input := "\ufeffid\ttext\t ts2\n" +
		"1\thello world\t2021-02-03\n" +
		"2\tshort\n"

	r, err := NewReader(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "text", "ts2"}, r.Header().Names())
	assert.True(t, r.Header().Has("ts2"), "header names are trimmed")

	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, row.Line)
	v, ok := row.Get("text")
	assert.True(t, ok)
	assert.Equal(t, "hello world", v)

	row, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, row.Line)
	v, ok = row.Get("ts2")
	assert.True(t, ok, "short rows still have every header column")
	assert.Equal(t, "", v)
	assert.Equal(t, 2, row.Len())
	_, ok = row.Get("nope")
	assert.False(t, ok)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReader_QuotesAreLiteral(t *testing.T) {
	input := "id\ttext\n1\tshe said \"hi\" twice\n"

	r, err := NewReader(strings.NewReader(input))
	require.NoError(t, err)

	row, err := r.Next()
	require.NoError(t, err)
	v, _ := row.Get("text")
	assert.Equal(t, `she said "hi" twice`, v)
}

func TestReader_EmptyInput(t *testing.T) {
	_, err := NewReader(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrNoHeader))
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.tsv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCountRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.tsv")
	content := "id\ttext\n1\ta\n2\tb\n3\tc\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	n, err := CountRows(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	seen := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		seen++
	}
	assert.Equal(t, n, seen)
}

func TestNewRow(t *testing.T) {
	row := NewRow(7, map[string]string{"id": "5", "text": "x"})
	assert.Equal(t, 7, row.Line)
	assert.Equal(t, 2, row.Len())
	v, ok := row.Get("id")
	assert.True(t, ok)
	assert.Equal(t, "5", v)
}
