package backend

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectAndSameBackend(t *testing.T) {
	assert.Equal(t, KindPath, Detect(Location("/a/b")))
	assert.Equal(t, KindHandle, Detect(Location("handle://tree/doc1")))
	assert.True(t, SameBackend(Location("/a/b"), Location("/c/d")))
	assert.False(t, SameBackend(Location("/a/b"), Location("handle://tree/doc1")))
}

func TestSplitAndJoinPath(t *testing.T) {
	parent, name := Split(Location("/a/b/c.txt"))
	assert.Equal(t, Location("/a/b"), parent)
	assert.Equal(t, "c.txt", name)
	assert.Equal(t, Location("/a/b/c.txt"), Join(parent, name))
}

func TestSplitAndJoinHandle(t *testing.T) {
	parent, name := Split(Location("handle://tree/doc1/doc2"))
	assert.Equal(t, Location("handle://tree/doc1"), parent)
	assert.Equal(t, "doc2", name)
	assert.Equal(t, Location("handle://tree/doc1/doc2"), Join(parent, name))
}

func TestPathBackendCreateRenameDeleteListStatExists(t *testing.T) {
	dir := t.TempDir()
	bl := NewPathBackend(nil)
	ctx := context.Background()
	parent := Location(dir)

	result := bl.Create(ctx, parent, "a.txt", TypeFile, PolicyFail, "")
	require.True(t, result.Success)
	assert.FileExists(t, string(result.Location))

	assert.True(t, bl.Exists(ctx, parent, "a.txt"))
	assert.False(t, bl.Exists(ctx, parent, "missing.txt"))

	node, err := bl.Stat(ctx, result.Location)
	require.NoError(t, err)
	assert.False(t, node.IsDirectory)
	assert.Equal(t, "a.txt", node.Name)

	nodes, err := bl.List(ctx, parent)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "a.txt", nodes[0].Name)

	assert.True(t, bl.Rename(ctx, result.Location, "b.txt", PolicyFail, ""))
	assert.FileExists(t, filepath.Join(dir, "b.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "a.txt"))

	assert.True(t, bl.Delete(ctx, Location(filepath.Join(dir, "b.txt"))))
	assert.NoFileExists(t, filepath.Join(dir, "b.txt"))
}

func TestPathBackendCreateDirectory(t *testing.T) {
	dir := t.TempDir()
	bl := NewPathBackend(nil)
	ctx := context.Background()

	result := bl.Create(ctx, Location(dir), "sub", TypeDir, PolicyFail, "")
	require.True(t, result.Success)

	node, err := bl.Stat(ctx, result.Location)
	require.NoError(t, err)
	assert.True(t, node.IsDirectory)
}

func TestPathBackendCreateFailOnConflict(t *testing.T) {
	dir := t.TempDir()
	bl := NewPathBackend(nil)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	result := bl.Create(ctx, Location(dir), "a.txt", TypeFile, PolicyFail, "")
	assert.False(t, result.Success)
	assert.Error(t, result.Err)
}

func TestPathBackendRenameSameNameIsNoop(t *testing.T) {
	dir := t.TempDir()
	bl := NewPathBackend(nil)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	ok := bl.Rename(ctx, Location(filepath.Join(dir, "a.txt")), "a.txt", PolicyFail, "")
	assert.True(t, ok)
	assert.FileExists(t, filepath.Join(dir, "a.txt"))
}

func TestPathBackendMoveAcrossDirectories(t *testing.T) {
	dir := t.TempDir()
	bl := NewPathBackend(nil)
	ctx := context.Background()

	srcDir := filepath.Join(dir, "src")
	dstDir := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	source := filepath.Join(srcDir, "a.txt")
	require.NoError(t, os.WriteFile(source, []byte("x"), 0o644))

	ok := bl.Move(ctx, Location(source), Location(dstDir), "a.txt", PolicyFail, "")
	require.True(t, ok)
	assert.FileExists(t, filepath.Join(dstDir, "a.txt"))
	assert.NoFileExists(t, source)
}

func TestPathBackendOpenReadWrite(t *testing.T) {
	dir := t.TempDir()
	bl := NewPathBackend(nil)
	ctx := context.Background()

	result := bl.Create(ctx, Location(dir), "a.txt", TypeFile, PolicyFail, "")
	require.True(t, result.Success)

	w, err := bl.OpenWrite(ctx, result.Location)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := bl.OpenRead(ctx, result.Location)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestPathBackendNotifiesMediaIndexOnWhitelistedExtension(t *testing.T) {
	dir := t.TempDir()
	notifier := &recordingNotifier{}
	bl := NewPathBackend(notifier)
	ctx := context.Background()

	result := bl.Create(ctx, Location(dir), "photo.jpg", TypeFile, PolicyFail, "")
	require.True(t, result.Success)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, string(result.Location), notifier.notified[0])

	result2 := bl.Create(ctx, Location(dir), "notes.txt", TypeFile, PolicyFail, "")
	require.True(t, result2.Success)
	assert.Len(t, notifier.notified, 1, "non-whitelisted extension should not notify")
}

type recordingNotifier struct {
	notified []string
}

func (n *recordingNotifier) Notify(path string) {
	n.notified = append(n.notified, path)
}

// fakeDocumentTree is an in-memory DocumentTree test double covering the
// full interface, including OpenWrite, so HandleBackend can be exercised
// without a real document-tree provider.
type fakeDocumentTree struct {
	mu       sync.Mutex
	children map[string]map[string]string // parentURI -> name -> childURI
	infos    map[string]DocumentInfo      // uri -> info
	data     map[string][]byte            // uri -> bytes
	seq      int
}

func newFakeDocumentTree() *fakeDocumentTree {
	return &fakeDocumentTree{
		children: map[string]map[string]string{"root": {}},
		infos:    map[string]DocumentInfo{"root": {Name: "root", URI: "root", IsDirectory: true}},
		data:     map[string][]byte{},
	}
}

func (t *fakeDocumentTree) nextURI(parentURI, name string) string {
	t.seq++
	return parentURI + "/" + name
}

func (t *fakeDocumentTree) Lookup(ctx context.Context, parentURI, name string) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	uri, ok := t.children[parentURI][name]
	return uri, ok, nil
}

func (t *fakeDocumentTree) CreateFile(ctx context.Context, parentURI, name, mimeType string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	uri := t.nextURI(parentURI, name)
	if t.children[parentURI] == nil {
		t.children[parentURI] = map[string]string{}
	}
	t.children[parentURI][name] = uri
	t.infos[uri] = DocumentInfo{Name: name, URI: uri, LastModified: time.Now()}
	t.data[uri] = nil
	return uri, nil
}

func (t *fakeDocumentTree) CreateDirectory(ctx context.Context, parentURI, name string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	uri := t.nextURI(parentURI, name)
	if t.children[parentURI] == nil {
		t.children[parentURI] = map[string]string{}
	}
	t.children[parentURI][name] = uri
	t.infos[uri] = DocumentInfo{Name: name, URI: uri, IsDirectory: true, LastModified: time.Now()}
	t.children[uri] = map[string]string{}
	return uri, nil
}

func (t *fakeDocumentTree) Delete(ctx context.Context, uri string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.infos, uri)
	delete(t.data, uri)
	delete(t.children, uri)
	for parent, kids := range t.children {
		for name, u := range kids {
			if u == uri {
				delete(t.children[parent], name)
			}
		}
	}
	return nil
}

func (t *fakeDocumentTree) Rename(ctx context.Context, uri, newName string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.infos[uri]
	if !ok {
		return "", os.ErrNotExist
	}
	var parentURI string
	for parent, kids := range t.children {
		for name, u := range kids {
			if u == uri {
				parentURI = parent
				delete(kids, name)
			}
		}
	}
	newURI := t.nextURI(parentURI, newName)
	if t.children[parentURI] == nil {
		t.children[parentURI] = map[string]string{}
	}
	t.children[parentURI][newName] = newURI
	info.Name = newName
	info.URI = newURI
	t.infos[newURI] = info
	delete(t.infos, uri)
	if data, ok := t.data[uri]; ok {
		t.data[newURI] = data
		delete(t.data, uri)
	}
	return newURI, nil
}

func (t *fakeDocumentTree) List(ctx context.Context, parentURI string) ([]DocumentInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var infos []DocumentInfo
	for _, uri := range t.children[parentURI] {
		infos = append(infos, t.infos[uri])
	}
	return infos, nil
}

func (t *fakeDocumentTree) Stat(ctx context.Context, uri string) (DocumentInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.infos[uri]
	if !ok {
		return DocumentInfo{}, os.ErrNotExist
	}
	return info, nil
}

func (t *fakeDocumentTree) OpenRead(ctx context.Context, uri string) (io.ReadCloser, error) {
	t.mu.Lock()
	data := t.data[uri]
	t.mu.Unlock()
	return io.NopCloser(bytesReader(data)), nil
}

func (t *fakeDocumentTree) OpenWrite(ctx context.Context, uri string) (io.WriteCloser, error) {
	return &fakeWriteCloser{tree: t, uri: uri}, nil
}

type fakeWriteCloser struct {
	tree *fakeDocumentTree
	uri  string
	buf  []byte
}

func (w *fakeWriteCloser) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *fakeWriteCloser) Close() error {
	w.tree.mu.Lock()
	w.tree.data[w.uri] = w.buf
	info := w.tree.infos[w.uri]
	info.Size = int64(len(w.buf))
	w.tree.infos[w.uri] = info
	w.tree.mu.Unlock()
	return nil
}

func bytesReader(b []byte) *byteReaderAt { return &byteReaderAt{data: b} }

type byteReaderAt struct {
	data []byte
	pos  int
}

func (r *byteReaderAt) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func TestHandleBackendCreateListStatExists(t *testing.T) {
	tree := newFakeDocumentTree()
	bl := NewHandleBackend(tree)
	ctx := context.Background()
	root := wrap("root")

	result := bl.Create(ctx, root, "a.txt", TypeFile, PolicyFail, "")
	require.True(t, result.Success)
	assert.True(t, bl.Exists(ctx, root, "a.txt"))

	node, err := bl.Stat(ctx, result.Location)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", node.Name)

	nodes, err := bl.List(ctx, root)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "a.txt", nodes[0].Name)
}

func TestHandleBackendRename(t *testing.T) {
	tree := newFakeDocumentTree()
	bl := NewHandleBackend(tree)
	ctx := context.Background()
	root := wrap("root")

	result := bl.Create(ctx, root, "a.txt", TypeFile, PolicyFail, "")
	require.True(t, result.Success)

	ok := bl.Rename(ctx, result.Location, "b.txt", PolicyFail, "")
	assert.True(t, ok)
	assert.True(t, bl.Exists(ctx, root, "b.txt"))
	assert.False(t, bl.Exists(ctx, root, "a.txt"))
}

func TestHandleBackendOpenReadWrite(t *testing.T) {
	tree := newFakeDocumentTree()
	bl := NewHandleBackend(tree)
	ctx := context.Background()
	root := wrap("root")

	result := bl.Create(ctx, root, "a.txt", TypeFile, PolicyFail, "")
	require.True(t, result.Success)

	w, err := bl.OpenWrite(ctx, result.Location)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := bl.OpenRead(ctx, result.Location)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

// fakeLister is a minimal Lister used to exercise Traverse's bounded depth
// and cycle protection independent of either concrete backend.
type fakeLister struct {
	children map[Location][]Node
}

func (l *fakeLister) List(ctx context.Context, dir Location) ([]Node, error) {
	return l.children[dir], nil
}
func (l *fakeLister) Stat(ctx context.Context, loc Location) (Node, error) { return Node{}, nil }
func (l *fakeLister) Exists(ctx context.Context, parent Location, name string) bool { return false }

func TestTraverseBoundedDepth(t *testing.T) {
	l := &fakeLister{children: map[Location][]Node{
		"/root":     {{Name: "a", Location: "/root/a", IsDirectory: true}},
		"/root/a":   {{Name: "b", Location: "/root/a/b", IsDirectory: true}},
		"/root/a/b": {{Name: "c", Location: "/root/a/b/c"}},
	}}

	nodes, err := Traverse(context.Background(), l, "/root", 2)
	require.NoError(t, err)

	var names []string
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, names, "depth 2 should not descend into /root/a/b's children")
}

func TestTraverseUnlimitedDepth(t *testing.T) {
	l := &fakeLister{children: map[Location][]Node{
		"/root":     {{Name: "a", Location: "/root/a", IsDirectory: true}},
		"/root/a":   {{Name: "b", Location: "/root/a/b", IsDirectory: true}},
		"/root/a/b": {{Name: "c", Location: "/root/a/b/c"}},
	}}

	nodes, err := Traverse(context.Background(), l, "/root", -1)
	require.NoError(t, err)

	var names []string
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, names)
}

func TestTraverseGuardsAgainstCycles(t *testing.T) {
	// /root/a lists /root as one of its own children: a naive walk would
	// loop forever without the visited-set guard.
	l := &fakeLister{children: map[Location][]Node{
		"/root":   {{Name: "a", Location: "/root/a", IsDirectory: true}},
		"/root/a": {{Name: "root", Location: "/root", IsDirectory: true}},
	}}

	nodes, err := Traverse(context.Background(), l, "/root", -1)
	require.NoError(t, err)
	assert.Len(t, nodes, 1, "the cyclic back-reference to /root must not be revisited")
}
