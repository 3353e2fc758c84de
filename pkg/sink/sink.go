// Package sink persists the aggregate table as CSV.
package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/table"
)

// Sink writes a table to its destination, replacing anything already there
type Sink interface {
	Write(ctx context.Context, t *table.Table) error
	Location() string
}

// Remover is implemented by sinks that can delete what they wrote. Removing
// a destination that does not exist is not an error.
type Remover interface {
	Remove(ctx context.Context) error
}

// Encode writes t as UTF-8 CSV: a header row with the column names, then
// one line per row. No index column is written.
func Encode(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}

	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(t.Columns))
		}
		for j, v := range row {
			record[j] = table.Text(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// File writes CSV to a local path. The table is written to a temporary file
// in the same directory and renamed over Path, so a failed write never
// leaves a partial file behind.
type File struct {
	Path string
}

// Location implements Sink
func (f *File) Location() string {
	return f.Path
}

// Write implements Sink
func (f *File) Write(ctx context.Context, t *table.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Wrap(errs.KindSinkWriteFailure, err, "failed to create output directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return errs.Wrap(errs.KindSinkWriteFailure, err, "failed to create temporary file")
	}
	tempPath := tmp.Name()

	err = Encode(tmp, t)
	if err == nil {
		// CreateTemp uses 0600 and the rename keeps it
		err = tmp.Chmod(0644)
	}
	closeErr := tmp.Close()

	if err != nil {
		os.Remove(tempPath)
		return errs.Wrap(errs.KindSinkWriteFailure, err, "failed to write %s", f.Path)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return errs.Wrap(errs.KindSinkWriteFailure, closeErr, "failed to close %s", tempPath)
	}

	if err := os.Rename(tempPath, f.Path); err != nil {
		os.Remove(tempPath)
		return errs.Wrap(errs.KindSinkWriteFailure, err, "failed to rename temporary file")
	}
	return nil
}

// Remove implements Remover
func (f *File) Remove(ctx context.Context) error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.KindSinkWriteFailure, err, "failed to remove %s", f.Path)
	}
	return nil
}

// ObjectAPI is the part of the S3 client used by S3
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 uploads CSV to an S3 object. A PUT replaces the object atomically.
type S3 struct {
	Client ObjectAPI
	Bucket string
	Key    string
}

// Location implements Sink
func (s *S3) Location() string {
	return "s3://" + s.Bucket + "/" + s.Key
}

// Write implements Sink
func (s *S3) Write(ctx context.Context, t *table.Table) error {
	var buf bytes.Buffer
	if err := Encode(&buf, t); err != nil {
		return errs.Wrap(errs.KindSinkWriteFailure, err, "failed to encode %s", s.Location())
	}

	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.Key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv; charset=utf-8"),
	})
	if err != nil {
		return errs.Wrap(errs.KindSinkWriteFailure, err, "failed to upload %s", s.Location())
	}
	return nil
}

// Remove implements Remover. S3 answers a delete of a missing key with
// success.
func (s *S3) Remove(ctx context.Context) error {
	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return errs.Wrap(errs.KindSinkWriteFailure, err, "failed to delete %s", s.Location())
	}
	return nil
}

// ParseS3 splits an s3://bucket/key location
func ParseS3(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("not an s3 location: %s", location)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("s3 location needs a bucket and a key: %s", location)
	}
	return u.Host, key, nil
}

// Open returns the sink for location: an S3 object for s3:// URLs, a local
// file otherwise. S3 credentials come from the default AWS chain.
func Open(ctx context.Context, location string) (Sink, error) {
	if !strings.HasPrefix(location, "s3://") {
		return &File{Path: location}, nil
	}

	bucket, key, err := ParseS3(location)
	if err != nil {
		return nil, errs.Wrap(errs.KindSinkWriteFailure, err, "invalid output location")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindSinkWriteFailure, err, "failed to load AWS config")
	}

	return &S3{Client: s3.NewFromConfig(cfg), Bucket: bucket, Key: key}, nil
}

// FailuresLocation returns where the failure report for output is written:
// players.csv becomes players.failures.csv.
func FailuresLocation(output string) string {
	ext := filepath.Ext(output)
	if strings.EqualFold(ext, ".csv") {
		return strings.TrimSuffix(output, ext) + ".failures.csv"
	}
	return output + ".failures.csv"
}
