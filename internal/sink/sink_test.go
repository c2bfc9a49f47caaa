package sink

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystem_WriteAndRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	s := NewFilesystem(root)

	require.NoError(t, s.Write(ctx, "lib/models/Pet.ts", []byte("a"), false))
	got, err := os.ReadFile(filepath.Join(root, "lib", "models", "Pet.ts"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))

	err = s.Write(ctx, "lib/models/Pet.ts", []byte("b"), false)
	require.ErrorIs(t, err, fs.ErrExist)

	require.NoError(t, s.Write(ctx, "lib/models/Pet.ts", []byte("b"), true))
	got, err = s.Read(ctx, "lib/models/Pet.ts")
	require.NoError(t, err)
	assert.Equal(t, "b", string(got))

	_, err = s.Read(ctx, "lib/models/Tag.ts")
	require.ErrorIs(t, err, fs.ErrNotExist)

	entries, err := os.ReadDir(filepath.Join(root, "lib", "models"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestFilesystem_RejectsEscapes(t *testing.T) {
	t.Parallel()
	s := NewFilesystem(t.TempDir())
	for _, p := range []string{"../x.ts", "/etc/passwd", "lib/../../x.ts", "", "lib//x.ts", "C:/x.ts"} {
		assert.Error(t, s.Write(context.Background(), p, nil, true), p)
	}
}

func TestFilesystem_ConcurrentWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewFilesystem(t.TempDir())

	var wg sync.WaitGroup
	for _, name := range []string{"A", "B", "C", "D"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			assert.NoError(t, s.Write(ctx, "lib/models/"+name+".ts", []byte(name), false))
		}(name)
	}
	wg.Wait()

	for _, name := range []string{"A", "B", "C", "D"} {
		got, err := s.Read(ctx, "lib/models/"+name+".ts")
		require.NoError(t, err)
		assert.Equal(t, name, string(got))
	}
}

func TestMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	content := []byte("x")
	require.NoError(t, m.Write(ctx, "b.ts", content, false))
	content[0] = 'y'
	got, err := m.Read(ctx, "b.ts")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got), "stored content is copied")

	require.ErrorIs(t, m.Write(ctx, "b.ts", nil, false), fs.ErrExist)
	require.NoError(t, m.Write(ctx, "a.ts", nil, false))
	assert.Equal(t, []string{"a.ts", "b.ts"}, m.Paths())

	_, err = m.Read(ctx, "c.ts")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestPlan_RecordsWithoutWriting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	base := NewFilesystem(root)
	require.NoError(t, base.Write(ctx, "lib/main.ts", []byte("old"), false))

	plan := NewPlan(base)
	require.NoError(t, plan.Write(ctx, "lib/models/Pet.ts", []byte("pet"), false))
	require.NoError(t, plan.Write(ctx, "lib/main.ts", []byte("new"), true))
	require.ErrorIs(t, plan.Write(ctx, "lib/main.ts", []byte("again"), false), fs.ErrExist)

	got, err := plan.Read(ctx, "lib/main.ts")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got), "reads see planned content")

	assert.Equal(t, []PlannedWrite{
		{Path: "lib/main.ts", Bytes: 3, Existed: true},
		{Path: "lib/models/Pet.ts", Bytes: 3},
	}, plan.Writes())

	onDisk, err := os.ReadFile(filepath.Join(root, "lib", "main.ts"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(onDisk))
	_, err = os.Stat(filepath.Join(root, "lib", "models"))
	assert.True(t, os.IsNotExist(err), "dry run creates nothing")
}

func TestPlan_NilBase(t *testing.T) {
	t.Parallel()
	plan := NewPlan(nil)
	_, err := plan.Read(context.Background(), "x.ts")
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.NoError(t, plan.Write(context.Background(), "x.ts", []byte("1"), false))
	assert.Len(t, plan.Writes(), 1)
}
