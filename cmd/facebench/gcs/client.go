// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gcs archives a configuration's results directory to a Google
// Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrNotDirectory is returned by UploadDir when localDir is a file.
var ErrNotDirectory = errors.New("not a directory")

// objectWriterFunc opens a writer for one object in the bucket.
type objectWriterFunc func(ctx context.Context, name string) io.WriteCloser

type Client struct {
	storageClient *storage.Client
	newWriter     objectWriterFunc
	ProjectId     string
	BucketName    string
}

func NewClient(ctx context.Context, projectId, bucketName, saKeyPath string) (*Client, error) {
	if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("service account key not found at path: %s. Please ensure you have the correct key and it is accessible", saKeyPath)
	}

	storageClient, err := storage.NewClient(ctx, option.WithCredentialsFile(saKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	c := &Client{
		storageClient: storageClient,
		ProjectId:     projectId,
		BucketName:    bucketName,
	}
	c.newWriter = c.storageWriter
	return c, nil
}

// Close releases the storage client.
func (c *Client) Close() error {
	if c.storageClient == nil {
		return nil
	}
	return c.storageClient.Close()
}

func (c *Client) storageWriter(ctx context.Context, name string) io.WriteCloser {
	writer := c.storageClient.Bucket(c.BucketName).Object(name).NewWriter(ctx)
	writer.ContentType = contentType(name)
	writer.CacheControl = "no-cache, no-store, must-revalidate"
	return writer
}

// contentType picks a type for the file kinds a results directory holds.
func contentType(name string) string {
	switch path.Ext(name) {
	case ".yaml":
		return "application/yaml"
	case ".txt", ".prom":
		return "text/plain; charset=utf-8"
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (c *Client) UploadFile(ctx context.Context, localPath, gcsPath string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open the local file: %s: %w", localPath, err)
	}
	defer localFile.Close()

	writer := c.newWriter(ctx, gcsPath)
	if _, err := io.Copy(writer, localFile); err != nil {
		writer.Close()
		return fmt.Errorf("failed to copy local file %s to GCS object %s: %w", localPath, gcsPath, err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", gcsPath, err)
	}
	return nil
}

// UploadDir uploads every regular file under localDir to gcsPrefix, keeping
// the relative layout. Directories for which skip returns true are not
// entered. It returns the object names written.
func (c *Client) UploadDir(ctx context.Context, localDir, gcsPrefix string, skip func(rel string) bool) ([]string, error) {
	info, err := os.Stat(localDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", localDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", localDir, ErrNotDirectory)
	}

	var uploaded []string
	err = filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." && skip != nil && skip(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := path.Join(gcsPrefix, filepath.ToSlash(rel))
		if err := c.UploadFile(ctx, p, name); err != nil {
			return err
		}
		uploaded = append(uploaded, name)
		return nil
	})
	return uploaded, err
}

// URL is the gs:// address of an object in the client's bucket.
func (c *Client) URL(name string) string {
	return fmt.Sprintf("gs://%s/%s", c.BucketName, name)
}
