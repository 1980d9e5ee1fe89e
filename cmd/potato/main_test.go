package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestConfigCommand(t *testing.T) {
	t.Setenv("COLLECTION_NAME", "posts")

	out, _, err := execute(t, "config", "--backend", "bolt", "--data-dir", "/tmp/potato")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "bolt", got["backend"])
	assert.Equal(t, "/tmp/potato", got["data_dir"])
	assert.Equal(t, "posts", got["collection"])
}

func TestInvalidBackend(t *testing.T) {
	_, _, err := execute(t, "config", "--backend", "sqlite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}

func TestIngestThenQuery(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tweets.tsv")
	require.NoError(t, os.WriteFile(input, []byte(
		"id\ttext\tlike_count\tcreated_at\tauthor_id\tauthor_handle\tplace_id\n"+
			"1\tI love Music\t4\t2021-02-03 10:15:00\t10\tamy\tp1\n"+
			"2\tmusic tonight\t2\t2021-02-03 20:00:00\t11\tbob\t\n"+
			"3\tMUSIC again\tx\t2021-02-04 09:30:00\t10\tamy\tp1\n"+
			"\tno id\t1\t2021-02-04 09:30:00\t12\tcat\t\n"),
		0600))

	store := []string{"--backend", "bolt", "--data-dir", filepath.Join(dir, "data"), "--log-level", "error"}

	_, _, err := execute(t, append([]string{"ingest", "--input", input, "--chunk-size", "2", "--count-rows"}, store...)...)
	require.NoError(t, err)

	// A second load upserts the same ids
	_, _, err = execute(t, append([]string{"ingest", "--input", input}, store...)...)
	require.NoError(t, err)

	out, _, err := execute(t, append([]string{"query", "--term", "music"}, store...)...)
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got, 6)
	assert.JSONEq(t, `[{"date":"2021-02-03","count":2},{"date":"2021-02-04","count":1}]`, string(got["tweets_per_day"]))
	assert.JSONEq(t, `[{"unique_users":2}]`, string(got["unique_users"]))
	assert.JSONEq(t, `[{"avg_likes":2}]`, string(got["average_likes"]))
	assert.JSONEq(t, `[{"place_id":"p1","count":2},{"place_id":null,"count":1}]`, string(got["tweet_locations"]))
	assert.JSONEq(t, `[{"author_handle":"amy","count":2}]`, string(got["top_user"]))

	_, _, err = execute(t, append([]string{"resync", "--batch-size", "2"}, store...)...)
	require.NoError(t, err)

	after, _, err := execute(t, append([]string{"query", "--term", "music"}, store...)...)
	require.NoError(t, err)
	assert.JSONEq(t, out, after)
}

func TestIngestLogsCarryComponentAndRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tweets.tsv")
	require.NoError(t, os.WriteFile(input, []byte(
		"id\ttext\tcreated_at\n1\thello\t2021-02-03 10:15:00\n"), 0600))

	_, stderr, err := execute(t, "ingest", "--input", input, "--backend", "bolt",
		"--data-dir", filepath.Join(dir, "data"), "--log-json", "--log-level", "debug")
	require.NoError(t, err)

	assert.Contains(t, stderr, `"component":"ingest"`)
	assert.Contains(t, stderr, `"run_id":`)
	assert.Contains(t, stderr, `"columns":["id","text","created_at"]`)
	assert.Contains(t, stderr, `"applied":1`)
}

func TestQuery_BadGranularity(t *testing.T) {
	_, _, err := execute(t, "query", "--granularity", "day", "--backend", "bolt", "--data-dir", t.TempDir())
	require.Error(t, err)
}
