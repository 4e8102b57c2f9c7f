package storage_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ato_site/internal/storage"

	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	var gotPath, gotAuth, gotType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"Key":"ImageStorage/HomePageImages/1_a.jpg"}`))
	}))
	defer server.Close()

	client := storage.New(server.URL, "ImageStorage", "service-key")
	err := client.Upload(context.Background(), "HomePageImages/1_a.jpg", "image/jpeg", strings.NewReader("jpeg"))
	require.NoError(t, err)
	require.Equal(t, "/storage/v1/object/ImageStorage/HomePageImages/1_a.jpg", gotPath)
	require.Equal(t, "Bearer service-key", gotAuth)
	require.Equal(t, "image/jpeg", gotType)
	require.Equal(t, "jpeg", gotBody)
}

func TestUpload_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"The resource already exists"}`))
	}))
	defer server.Close()

	client := storage.New(server.URL, "ImageStorage", "k")
	err := client.Upload(context.Background(), "RushImage/x.png", "", strings.NewReader("x"))

	var apiErr *storage.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "upload RushImage/x.png", apiErr.Op)
	require.NotEmpty(t, apiErr.Message)
}

func TestRemove(t *testing.T) {
	var got map[string][]string
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := storage.New(server.URL, "ImageStorage", "k")
	require.NoError(t, client.Remove(context.Background(), "HomePageImages/a.jpg", "HomePageImages/b.jpg"))
	require.Equal(t, http.MethodDelete, method)
	require.Equal(t, "/storage/v1/object/ImageStorage", path)
	require.Equal(t, []string{"HomePageImages/a.jpg", "HomePageImages/b.jpg"}, got["prefixes"])
}

func TestList_SkipsPlaceholder(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/storage/v1/object/list/ImageStorage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`[
			{"name": ".emptyFolderPlaceholder", "id": "1"},
			{"name": "1700000000000_lead.jpg", "id": "2", "created_at": "2024-01-02T03:04:05Z"}
		]`))
	}))
	defer server.Close()

	client := storage.New(server.URL, "ImageStorage", "k")
	objects, err := client.List(context.Background(), "LeadershipImage", 2)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.Equal(t, "1700000000000_lead.jpg", objects[0].Name)
	require.Equal(t, "LeadershipImage", got["prefix"])
	require.EqualValues(t, 2, got["limit"])
}

func TestPublicURLAndObjectPath(t *testing.T) {
	client := storage.New("https://proj.supabase.co/", "ImageStorage", "k")
	u := client.PublicURL("ExecBoardImages/1_my photo.jpg")
	require.Equal(t, "https://proj.supabase.co/storage/v1/object/public/ImageStorage/ExecBoardImages/1_my%20photo.jpg", u)
	require.Equal(t, "ExecBoardImages/1_my photo.jpg", storage.ObjectPath(storage.FolderExec, u))
}

func TestUniqueName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "photo.jpg", "1700000000123_photo.jpg"},
		{"spaces and unicode", "my pic é.png", "1700000000123_my_pic__.png"},
		{"directory stripped", "../../etc/passwd", "1700000000123_passwd"},
		{"empty", "", "1700000000123_file"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, storage.UniqueName(now, tc.in))
		})
	}
}
