package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/table"
)

func shots() *table.Table {
	t := table.New("Shot_Chart_Detail", "GRID_TYPE", "PLAYER_ID", "ACTION_TYPE", "SHOT_MADE_FLAG", "HTM")
	t.Rows = [][]any{
		{"Shot Chart Detail", json.Number("2544"), "Driving Layup Shot", json.Number("1"), nil},
		{"Shot Chart Detail", json.Number("2544"), "Pullup Jump, shot", json.Number("0"), true},
	}
	return t
}

const shotsCSV = "GRID_TYPE,PLAYER_ID,ACTION_TYPE,SHOT_MADE_FLAG,HTM\n" +
	"Shot Chart Detail,2544,Driving Layup Shot,1,\n" +
	"Shot Chart Detail,2544,\"Pullup Jump, shot\",0,True\n"

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, shots()))
	assert.Equal(t, shotsCSV, buf.String())
}

func TestEncodeHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, table.New("x", "A", "B")))
	assert.Equal(t, "A,B\n", buf.String())
}

func TestEncodeRaggedRow(t *testing.T) {
	tbl := table.New("x", "A", "B")
	tbl.Rows = [][]any{{"only one"}}
	assert.Error(t, Encode(io.Discard, tbl))
}

func TestFileWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "all_players_shot_attempts_2022.csv")
	f := &File{Path: path}

	require.NoError(t, f.Write(context.Background(), shots()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, shotsCSV, string(data))
	assert.Equal(t, path, f.Location())
}

func TestFileWriteOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale content that is longer than the new file\n"), 0644))

	f := &File{Path: path}
	require.NoError(t, f.Write(context.Background(), table.New("x", "A")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestFileWriteIsWorldReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "player_information.csv")
	require.NoError(t, (&File{Path: path}).Write(context.Background(), shots()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestFileRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.failures.csv")
	f := &File{Path: path}
	require.NoError(t, f.Write(context.Background(), shots()))

	require.NoError(t, f.Remove(context.Background()))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// removing again is fine
	assert.NoError(t, f.Remove(context.Background()))
}

func TestFileWriteFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "players.csv")
	bad := table.New("x", "A", "B")
	bad.Rows = [][]any{{"one"}}

	err := (&File{Path: path}).Write(context.Background(), bad)
	assert.ErrorIs(t, err, errs.ErrSinkWriteFailure)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestFileWriteUnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	err := (&File{Path: filepath.Join(blocker, "out.csv")}).Write(context.Background(), shots())
	assert.ErrorIs(t, err, errs.ErrSinkWriteFailure)
	assert.Equal(t, errs.ExitSinkWriteFailure, errs.ExitCode(err))
}

type fakeS3 struct {
	input   *s3.PutObjectInput
	body    []byte
	deleted *s3.DeleteObjectInput
	err     error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = in
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Write(t *testing.T) {
	client := &fakeS3{}
	s := &S3{Client: client, Bucket: "hoops", Key: "2022/shots.csv"}

	require.NoError(t, s.Write(context.Background(), shots()))
	assert.Equal(t, "hoops", *client.input.Bucket)
	assert.Equal(t, "2022/shots.csv", *client.input.Key)
	assert.Equal(t, shotsCSV, string(client.body))
	assert.Equal(t, "s3://hoops/2022/shots.csv", s.Location())
}

func TestS3WriteFailure(t *testing.T) {
	s := &S3{Client: &fakeS3{err: errors.New("access denied")}, Bucket: "hoops", Key: "x.csv"}
	err := s.Write(context.Background(), shots())
	assert.ErrorIs(t, err, errs.ErrSinkWriteFailure)
	assert.Contains(t, err.Error(), "access denied")
}

func TestS3Remove(t *testing.T) {
	client := &fakeS3{}
	s := &S3{Client: client, Bucket: "hoops", Key: "2022/shots.failures.csv"}

	require.NoError(t, s.Remove(context.Background()))
	require.NotNil(t, client.deleted)
	assert.Equal(t, "hoops", *client.deleted.Bucket)
	assert.Equal(t, "2022/shots.failures.csv", *client.deleted.Key)

	failing := &S3{Client: &fakeS3{err: errors.New("access denied")}, Bucket: "hoops", Key: "x.csv"}
	assert.ErrorIs(t, failing.Remove(context.Background()), errs.ErrSinkWriteFailure)
}

func TestParseS3(t *testing.T) {
	bucket, key, err := ParseS3("s3://hoops/exports/shots.csv")
	require.NoError(t, err)
	assert.Equal(t, "hoops", bucket)
	assert.Equal(t, "exports/shots.csv", key)

	for _, bad := range []string{"s3://hoops", "s3:///key.csv", "file:///tmp/x.csv"} {
		_, _, err := ParseS3(bad)
		assert.Error(t, err, bad)
	}
}

func TestOpenLocalFile(t *testing.T) {
	s, err := Open(context.Background(), "players.csv")
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)
}

func TestOpenBadS3Location(t *testing.T) {
	_, err := Open(context.Background(), "s3://bucket-only")
	assert.ErrorIs(t, err, errs.ErrSinkWriteFailure)
}

func TestFailuresLocation(t *testing.T) {
	assert.Equal(t, "all_players_shot_attempts_2022.failures.csv", FailuresLocation("all_players_shot_attempts_2022.csv"))
	assert.Equal(t, "out/players.failures.csv", FailuresLocation("out/players.CSV"))
	assert.Equal(t, "s3://b/k.failures.csv", FailuresLocation("s3://b/k.csv"))
	assert.Equal(t, "export.failures.csv", FailuresLocation("export"))
}
