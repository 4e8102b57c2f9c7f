// Package storage adapts the Supabase Storage SDK to the site bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"ato_site/internal/metrics"

	storage_go "github.com/supabase-community/storage-go"
)

// Folders inside the site bucket.
const (
	FolderCarousel   = "HomePageImages"
	FolderExec       = "ExecBoardImages"
	FolderLeadership = "LeadershipImage"
	FolderRush       = "RushImage"
	FolderNews       = "RecentNewsImages"
)

// placeholder is the marker object Supabase creates for empty folders.
const placeholder = ".emptyFolderPlaceholder"

// APIError is a failed call to the storage API.
type APIError struct {
	Op      string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storage %s: %s", e.Op, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func apiError(op string, err error) error {
	return &APIError{Op: op, Message: err.Error(), Err: err}
}

// Object is one entry returned by List.
type Object struct {
	Name      string
	ID        string
	CreatedAt time.Time
}

// Client talks to one bucket of a Supabase project.
type Client struct {
	api    *storage_go.Client
	bucket string
}

// New returns a client for bucket at the project URL, authenticated with key
// (the service role key for writes).
func New(projectURL, bucket, key string) *Client {
	baseURL := strings.TrimRight(projectURL, "/") + "/storage/v1"
	return &Client{
		api:    storage_go.NewClient(baseURL, key, map[string]string{"apikey": key}),
		bucket: bucket,
	}
}

// Upload stores body at objectPath. Existing objects are not overwritten.
// The SDK takes no context, so ctx only short-circuits an already cancelled call.
func (c *Client) Upload(ctx context.Context, objectPath, contentType string, body io.Reader) (err error) {
	defer func() { metrics.Observe("storage.upload", err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := false
	_, err = c.api.UploadFile(c.bucket, objectPath, body, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return apiError("upload "+objectPath, err)
	}
	return nil
}

// Remove deletes the objects at paths. Missing objects are not an error.
func (c *Client) Remove(ctx context.Context, paths ...string) (err error) {
	defer func() { metrics.Observe("storage.remove", err) }()

	if len(paths) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err = c.api.RemoveFile(c.bucket, paths); err != nil {
		return apiError("remove "+strings.Join(paths, ","), err)
	}
	return nil
}

// List returns up to limit objects directly inside folder, newest first.
func (c *Client) List(ctx context.Context, folder string, limit int) (objects []Object, err error) {
	defer func() { metrics.Observe("storage.list", err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := c.api.ListFiles(c.bucket, folder, storage_go.FileSearchOptions{
		Limit:         limit,
		SortByOptions: storage_go.SortBy{Column: "created_at", Order: "desc"},
	})
	if err != nil {
		return nil, apiError("list "+folder, err)
	}

	objects = make([]Object, 0, len(raw))
	for _, o := range raw {
		if o.Name == "" || o.Name == placeholder {
			continue
		}
		created, _ := time.Parse(time.RFC3339, o.CreatedAt)
		objects = append(objects, Object{Name: o.Name, ID: o.Id, CreatedAt: created})
	}
	return objects, nil
}

// PublicURL returns the public download URL of objectPath.
func (c *Client) PublicURL(objectPath string) string {
	return c.api.GetPublicUrl(c.bucket, escapePath(objectPath)).SignedURL
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// ObjectPath derives the storage path of a public URL inside folder by taking
// the last URL segment as the file name.
func ObjectPath(folder, publicURL string) string {
	name := publicURL
	if u, err := url.Parse(publicURL); err == nil && u.Path != "" {
		name = u.Path
	}
	name = path.Base(name)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return folder + "/" + name
}

// UniqueName prefixes name with the upload time in milliseconds.
func UniqueName(now time.Time, name string) string {
	return fmt.Sprintf("%d_%s", now.UnixMilli(), sanitize(name))
}

func sanitize(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 || name == "." || name == "/" {
		return "file"
	}
	return b.String()
}
