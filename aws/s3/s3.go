// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package s3 implements bovespa.Store on top of an Amazon S3 bucket.
package s3

import (
	"context"
	"io"
	"io/ioutil"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pkg/errors"
)

// maxDeleteKeys is the most keys a single DeleteObjects call accepts.
const maxDeleteKeys = 1000

// StoreOption is a functional option type for s3.Store.
type StoreOption func(s *Store)

// OptStoreBucket is a StoreOption which sets the S3 bucket for a Store.
func OptStoreBucket(bucket string) StoreOption {
	return func(s *Store) {
		s.bucket = bucket
	}
}

// OptStoreRegion is a StoreOption which sets the AWS region for a Store.
func OptStoreRegion(region string) StoreOption {
	return func(s *Store) {
		s.region = region
	}
}

// OptStoreEndpoint points the Store at an S3 compatible endpoint (e.g.
// localstack or minio) instead of AWS. Path style addressing is used.
func OptStoreEndpoint(endpoint string) StoreOption {
	return func(s *Store) {
		s.endpoint = endpoint
	}
}

// OptStoreClient makes the Store use the given client and uploader instead of
// creating them from a new session.
func OptStoreClient(client s3iface.S3API, uploader s3manageriface.UploaderAPI) StoreOption {
	return func(s *Store) {
		s.s3 = client
		s.uploader = uploader
	}
}

// Store is a bovespa.Store backed by an S3 bucket. Keys are object keys.
type Store struct {
	bucket   string
	region   string
	endpoint string

	sess     *session.Session
	s3       s3iface.S3API
	uploader s3manageriface.UploaderAPI
}

// NewStore returns a new Store with the options applied.
func NewStore(opts ...StoreOption) (*Store, error) {
	s := &Store{
		region: "us-east-1",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bucket == "" {
		return nil, errors.New("no bucket given")
	}
	if s.s3 != nil {
		return s, nil
	}
	cfg := &aws.Config{Region: aws.String(s.region)}
	if s.endpoint != "" {
		cfg.Endpoint = aws.String(s.endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	var err error
	s.sess, err = session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "getting new session")
	}
	client := s3.New(s.sess)
	s.s3 = client
	s.uploader = s3manager.NewUploaderWithClient(client)
	return s, nil
}

// Session returns the AWS session the Store was created with, so other AWS
// clients can share its configuration. It is nil if OptStoreClient was used.
func (s *Store) Session() *session.Session {
	return s.sess
}

// Bucket returns the Store's bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// Put uploads r to key. S3 replaces objects atomically, so readers never see
// a partial object.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	return errors.Wrapf(err, "uploading %s", key)
}

// Get implements bovespa.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %v", key)
	}
	defer result.Body.Close()
	data, err := ioutil.ReadAll(result.Body)
	return data, errors.Wrapf(err, "reading %v", key)
}

// List implements bovespa.Store. S3 lists keys in lexical order.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := s.s3.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, last bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing objects under %s", prefix)
	}
	return keys, nil
}

// Delete implements bovespa.Store.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for len(keys) > 0 {
		n := len(keys)
		if n > maxDeleteKeys {
			n = maxDeleteKeys
		}
		ids := make([]*s3.ObjectIdentifier, n)
		for i, k := range keys[:n] {
			ids[i] = &s3.ObjectIdentifier{Key: aws.String(k)}
		}
		out, err := s.s3.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return errors.Wrap(err, "deleting objects")
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return errors.Errorf("deleting %s: %s: %s (and %d more)",
				aws.StringValue(e.Key), aws.StringValue(e.Code), aws.StringValue(e.Message), len(out.Errors)-1)
		}
		keys = keys[n:]
	}
	return nil
}

// Location implements bovespa.Store.
func (s *Store) Location(key string) string {
	return "s3://" + s.bucket + "/" + key
}

// Key implements bovespa.Store.
func (s *Store) Key(location string) (string, error) {
	bucket, key, err := ParseURI(location)
	if err != nil {
		return "", err
	}
	if bucket != s.bucket {
		return "", errors.Errorf("%s is not in bucket %s", location, s.bucket)
	}
	return key, nil
}

// ParseURI splits an s3://bucket/key URI.
func ParseURI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, "s3://") {
		return "", "", errors.Errorf("not an s3 uri: %s", uri)
	}
	rest := strings.TrimPrefix(uri, "s3://")
	i := strings.Index(rest, "/")
	if i < 0 {
		return rest, "", nil
	}
	return rest[:i], rest[i+1:], nil
}
