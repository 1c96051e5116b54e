package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/mediacellar/mediacellar/internal/albums"
	"github.com/mediacellar/mediacellar/internal/events"
	"github.com/mediacellar/mediacellar/internal/library"
	"github.com/mediacellar/mediacellar/internal/logging"
)

func TestMain(m *testing.M) {
	logging.InitDefault()
	os.Exit(m.Run())
}

// openGate lets every request through; token issuance is tested in the
// auth package.
type openGate struct{}

func (openGate) Middleware(next http.Handler) http.Handler { return next }

func (openGate) HandleLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": "stub"})
}

// memAlbums is an in-memory AlbumStore for handler tests.
type memAlbums struct {
	nextID  int
	byID    map[int]*albums.Album
	videos  map[int][]string
	renames [][2]string
}

func newMemAlbums() *memAlbums {
	return &memAlbums{
		nextID: 1,
		byID:   make(map[int]*albums.Album),
		videos: make(map[int][]string),
	}
}

func (m *memAlbums) Create(_ context.Context, name string) (*albums.Album, error) {
	for _, a := range m.byID {
		if a.Name == name {
			return nil, albums.ErrDuplicateName
		}
	}
	a := &albums.Album{ID: m.nextID, Name: name}
	m.byID[a.ID] = a
	m.nextID++
	return a, nil
}

func (m *memAlbums) List(_ context.Context) ([]albums.Album, error) {
	out := []albums.Album{}
	for _, a := range m.byID {
		c := *a
		c.VideoCount = len(m.videos[a.ID])
		out = append(out, c)
	}
	return out, nil
}

func (m *memAlbums) Get(_ context.Context, id int) (*albums.Album, []albums.Video, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, nil, albums.ErrNotFound
	}
	videos := []albums.Video{}
	for _, p := range m.videos[id] {
		videos = append(videos, albums.Video{Path: p})
	}
	return a, videos, nil
}

func (m *memAlbums) Delete(_ context.Context, id int) error {
	if _, ok := m.byID[id]; !ok {
		return albums.ErrNotFound
	}
	delete(m.byID, id)
	delete(m.videos, id)
	return nil
}

func (m *memAlbums) AddVideo(_ context.Context, id int, path string) error {
	if _, ok := m.byID[id]; !ok {
		return albums.ErrNotFound
	}
	for _, p := range m.videos[id] {
		if p == path {
			return nil
		}
	}
	m.videos[id] = append(m.videos[id], path)
	return nil
}

func (m *memAlbums) RemoveVideo(_ context.Context, id int, path string) error {
	for i, p := range m.videos[id] {
		if p == path {
			m.videos[id] = append(m.videos[id][:i], m.videos[id][i+1:]...)
			return nil
		}
	}
	return albums.ErrNotFound
}

func (m *memAlbums) RenamePath(_ context.Context, oldPath, newPath string) error {
	m.renames = append(m.renames, [2]string{oldPath, newPath})
	for id, vids := range m.videos {
		for i, p := range vids {
			if p == oldPath {
				m.videos[id][i] = newPath
			}
		}
	}
	return nil
}

type testEnv struct {
	server *Server
	store  *memAlbums
	fs     afero.Fs
	http   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fs := afero.NewMemMapFs()
	for _, dir := range []string{"/lib/movies", "/lib/photos", "/lib/.hidden"} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	write := func(path string, size int) {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte('a' + i%26)
		}
		if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	write("/lib/movies/a.mp4", 500000)
	write("/lib/movies/clip.mkv", 1000)
	write("/lib/photos/cat.jpg", 2048)
	write("/lib/notes.txt", 64)
	write("/lib/.hidden/b.mp4", 10)

	lib, err := library.New(library.Options{
		Root:             "/lib",
		Fs:               fs,
		SearchMaxDepth:   10,
		SearchMaxResults: 100,
	})
	if err != nil {
		t.Fatalf("library.New: %v", err)
	}

	store := newMemAlbums()
	srv := NewServer(lib, store, openGate{}, events.NewBroadcaster(), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: srv, store: store, fs: fs, http: ts}
}

func (e *testEnv) get(t *testing.T, path string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.http.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get(t, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestBrowse(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/v1/browse?path=movies", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var listing library.Listing
	decodeJSON(t, resp, &listing)
	if len(listing.Files) != 2 {
		t.Fatalf("expected 2 files, got %+v", listing.Files)
	}
	if listing.Files[0].Name != "a.mp4" || listing.Files[0].Size != 500000 {
		t.Errorf("unexpected first file: %+v", listing.Files[0])
	}
}

func TestBrowseHiddenFolderExcluded(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/v1/browse", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var listing library.Listing
	decodeJSON(t, resp, &listing)
	for _, f := range listing.Folders {
		if f.Name == ".hidden" {
			t.Error(".hidden folder must not be listed")
		}
	}
}

func TestBrowseTraversalRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/v1/browse?path=../../etc", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBrowseMissingDirectory(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/v1/browse?path=nope", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/v1/search?q=mp4", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body searchResponse
	decodeJSON(t, resp, &body)
	if body.Count != 1 || body.Results[0].Name != "a.mp4" {
		t.Fatalf("unexpected results: %+v", body)
	}
}

func TestSearchShortQueryIsEmptyResult(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/v1/search?q=a", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body searchResponse
	decodeJSON(t, resp, &body)
	if body.Count != 0 || len(body.Results) != 0 {
		t.Fatalf("expected empty results, got %+v", body)
	}
}

func TestVideoWholeFile(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/v1/video?path=movies/a.mp4", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
	if got := resp.Header.Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q", got)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(body) != 500000 {
		t.Errorf("body length = %d", len(body))
	}
}

func TestVideoRange(t *testing.T) {
	env := newTestEnv(t)

	h := http.Header{}
	h.Set("Range", "bytes=100-199")
	resp := env.get(t, "/api/v1/video?path=movies/a.mp4", h)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes 100-199/500000" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := resp.Header.Get("Content-Length"); got != "100" {
		t.Errorf("Content-Length = %q", got)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(body) != 100 {
		t.Errorf("body length = %d", len(body))
	}
}

func TestVideoOpenEndedRange(t *testing.T) {
	env := newTestEnv(t)

	h := http.Header{}
	h.Set("Range", "bytes=0-")
	resp := env.get(t, "/api/v1/video?path=movies/a.mp4", h)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes 0-499999/500000" {
		t.Errorf("Content-Range = %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 500000 {
		t.Errorf("body length = %d", len(body))
	}
}

func TestVideoRangeBeyondEOF(t *testing.T) {
	env := newTestEnv(t)

	h := http.Header{}
	h.Set("Range", "bytes=500000-500010")
	resp := env.get(t, "/api/v1/video?path=movies/a.mp4", h)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("expected 416, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes */500000" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestVideoMalformedRange(t *testing.T) {
	env := newTestEnv(t)

	h := http.Header{}
	h.Set("Range", "bytes=200-100")
	resp := env.get(t, "/api/v1/video?path=movies/a.mp4", h)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("expected 416, got %d", resp.StatusCode)
	}
}

func TestVideoTraversalRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/v1/video?path=../../etc/passwd", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(body), "passwd") {
		t.Error("error body must not echo the resolved path")
	}
}

func TestVideoRejectsNonVideo(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/v1/video?path=notes.txt", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestImage(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/v1/image?path=photos/cat.jpg", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("Content-Type = %q", got)
	}

	missing := env.get(t, "/api/v1/image?path=photos/dog.jpg", nil)
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing image, got %d", missing.StatusCode)
	}

	notImage := env.get(t, "/api/v1/image?path=movies/a.mp4", nil)
	defer notImage.Body.Close()
	if notImage.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for non-image, got %d", notImage.StatusCode)
	}
}

func TestImageRange(t *testing.T) {
	env := newTestEnv(t)

	h := http.Header{}
	h.Set("Range", "bytes=0-9")
	resp := env.get(t, "/api/v1/image?path=photos/cat.jpg", h)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes 0-9/2048" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := resp.Header.Get("Content-Length"); got != "10" {
		t.Errorf("Content-Length = %q", got)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(body) != 10 {
		t.Errorf("body length = %d", len(body))
	}

	bad := http.Header{}
	bad.Set("Range", "bytes=2048-2058")
	resp2 := env.get(t, "/api/v1/image?path=photos/cat.jpg", bad)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("expected 416 for range beyond EOF, got %d", resp2.StatusCode)
	}
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/v1/download?path=notes.txt", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="notes.txt"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 64 {
		t.Errorf("body length = %d", len(body))
	}
}

func TestRenameRewritesAlbumReferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	album, err := env.store.Create(ctx, "clips")
	if err != nil {
		t.Fatalf("create album: %v", err)
	}
	if err := env.store.AddVideo(ctx, album.ID, "movies/a.mp4"); err != nil {
		t.Fatalf("add video: %v", err)
	}

	ch := env.server.broadcaster.Subscribe()
	defer env.server.broadcaster.Unsubscribe(ch)

	payload, _ := json.Marshal(map[string]string{
		"from": "movies/a.mp4",
		"to":   "movies/renamed.mp4",
	})
	resp, err := http.Post(env.http.URL+"/api/v1/rename", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post rename: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if _, err := env.fs.Stat("/lib/movies/renamed.mp4"); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
	if len(env.store.renames) != 1 || env.store.renames[0] != [2]string{"movies/a.mp4", "movies/renamed.mp4"} {
		t.Errorf("album store not notified: %+v", env.store.renames)
	}

	select {
	case ev := <-ch:
		if ev.Type != events.EventRename || ev.To != "movies/renamed.mp4" {
			t.Errorf("unexpected event: %+v", ev)
		}
	default:
		t.Error("expected a rename event")
	}
}

func TestRenameTraversalRejected(t *testing.T) {
	env := newTestEnv(t)

	payload, _ := json.Marshal(map[string]string{
		"from": "movies/a.mp4",
		"to":   "../stolen.mp4",
	})
	resp, err := http.Post(env.http.URL+"/api/v1/rename", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post rename: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if len(env.store.renames) != 0 {
		t.Error("album store must not be notified on failure")
	}
}

func TestAlbumLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Create
	payload, _ := json.Marshal(map[string]string{"name": "favorites"})
	resp, err := http.Post(env.http.URL+"/api/v1/albums", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post album: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created albums.Album
	decodeJSON(t, resp, &created)

	// Duplicate name conflicts
	dup, err := http.Post(env.http.URL+"/api/v1/albums", "application/json",
		bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post duplicate: %v", err)
	}
	dup.Body.Close()
	if dup.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", dup.StatusCode)
	}

	// Add a video
	vidPayload, _ := json.Marshal(map[string]string{"path": "movies/clip.mkv"})
	addURL := fmt.Sprintf("%s/api/v1/albums/%d/videos", env.http.URL, created.ID)
	add, err := http.Post(addURL, "application/json", bytes.NewReader(vidPayload))
	if err != nil {
		t.Fatalf("post video: %v", err)
	}
	add.Body.Close()
	if add.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", add.StatusCode)
	}

	// Non-video paths are rejected
	badPayload, _ := json.Marshal(map[string]string{"path": "notes.txt"})
	bad, err := http.Post(addURL, "application/json", bytes.NewReader(badPayload))
	if err != nil {
		t.Fatalf("post bad video: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", bad.StatusCode)
	}

	// Get
	get := env.get(t, fmt.Sprintf("/api/v1/albums/%d", created.ID), nil)
	if get.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", get.StatusCode)
	}
	var detail struct {
		Album  albums.Album   `json:"album"`
		Videos []albums.Video `json:"videos"`
	}
	decodeJSON(t, get, &detail)
	if len(detail.Videos) != 1 || detail.Videos[0].Path != "movies/clip.mkv" {
		t.Fatalf("unexpected videos: %+v", detail.Videos)
	}

	// Remove the video
	delReq, _ := http.NewRequest(http.MethodDelete,
		addURL+"?path=movies/clip.mkv", nil)
	del, err := http.DefaultClient.Do(delReq)
	if err != nil {
		t.Fatalf("delete video: %v", err)
	}
	del.Body.Close()
	if del.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", del.StatusCode)
	}

	// Delete the album
	delAlbumReq, _ := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/v1/albums/%d", env.http.URL, created.ID), nil)
	delAlbum, err := http.DefaultClient.Do(delAlbumReq)
	if err != nil {
		t.Fatalf("delete album: %v", err)
	}
	delAlbum.Body.Close()
	if delAlbum.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", delAlbum.StatusCode)
	}

	missing := env.get(t, fmt.Sprintf("/api/v1/albums/%d", created.ID), nil)
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.StatusCode)
	}
}
