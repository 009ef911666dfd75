package rotator

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"ai-orchestrator-go/internal/credential"
	"github.com/stretchr/testify/require"
)

func staticGemini(keys ...credential.GeminiKey) func() ([]credential.GeminiKey, error) {
	return func() ([]credential.GeminiKey, error) { return keys, nil }
}

func TestGeminiRoundRobin(t *testing.T) {
	g := NewGemini(staticGemini("ka", "kb", "kc"))

	counts := map[credential.GeminiKey]int{}
	for i := 0; i < 9; i++ {
		k, err := g.Next()
		require.NoError(t, err)
		counts[k]++
	}
	require.Equal(t, map[credential.GeminiKey]int{"ka": 3, "kb": 3, "kc": 3}, counts)
}

func TestGeminiFairnessUnevenDraws(t *testing.T) {
	g := NewGemini(staticGemini("ka", "kb", "kc"))

	counts := map[credential.GeminiKey]int{}
	for i := 0; i < 10; i++ {
		k, err := g.Next()
		require.NoError(t, err)
		counts[k]++
	}
	// 10 draws over 3 keys: each key gets 3 or 4.
	for k, n := range counts {
		require.GreaterOrEqual(t, n, 3, "key %s", k)
		require.LessOrEqual(t, n, 4, "key %s", k)
	}
}

func TestGeminiEmptyPool(t *testing.T) {
	g := NewGemini(staticGemini())
	_, err := g.Next()
	require.ErrorIs(t, err, ErrEmptyPool)
	require.Zero(t, g.Count())
}

func TestGeminiReloadResetsCursor(t *testing.T) {
	g := NewGemini(staticGemini("ka", "kb"))

	first, err := g.Next()
	require.NoError(t, err)
	require.Equal(t, credential.GeminiKey("ka"), first)

	require.NoError(t, g.Reload())
	first, err = g.Next()
	require.NoError(t, err)
	require.Equal(t, credential.GeminiKey("ka"), first)
}

func TestGeminiReloadError(t *testing.T) {
	keys := []credential.GeminiKey{"ka"}
	fail := false
	g := NewGemini(func() ([]credential.GeminiKey, error) {
		if fail {
			return nil, errors.New("disk gone")
		}
		return keys, nil
	})
	require.Equal(t, 1, g.Count())

	fail = true
	require.Error(t, g.Reload())
	// Old pool still serves.
	k, err := g.Next()
	require.NoError(t, err)
	require.Equal(t, credential.GeminiKey("ka"), k)
}

func vertexPool(projects ...string) []*credential.Vertex {
	out := make([]*credential.Vertex, 0, len(projects))
	for _, p := range projects {
		out = append(out, &credential.Vertex{ProjectID: p})
	}
	return out
}

func TestVertexRoundRobinAndLookup(t *testing.T) {
	pool := vertexPool("proj-a", "proj-b")
	v := NewVertex(func() ([]*credential.Vertex, error) { return pool, nil })

	a, err := v.Next()
	require.NoError(t, err)
	b, err := v.Next()
	require.NoError(t, err)
	c, err := v.Next()
	require.NoError(t, err)
	require.Equal(t, "proj-a", a.ProjectID)
	require.Equal(t, "proj-b", b.ProjectID)
	require.Equal(t, "proj-a", c.ProjectID)

	require.NotNil(t, v.ByProjectID("proj-b"))
	require.Nil(t, v.ByProjectID("proj-unknown"))
}

func TestVertexEmptyPool(t *testing.T) {
	v := NewVertex(func() ([]*credential.Vertex, error) { return nil, nil })
	_, err := v.Next()
	require.ErrorIs(t, err, ErrEmptyPool)
	require.Nil(t, v.ByProjectID("any"))
}

func TestVertexReloadSwapsPool(t *testing.T) {
	pool := vertexPool("proj-a")
	v := NewVertex(func() ([]*credential.Vertex, error) { return pool, nil })
	require.Equal(t, []string{"proj-a"}, v.ProjectIDs())

	pool = vertexPool("proj-b", "proj-c")
	require.NoError(t, v.Reload())
	require.Equal(t, []string{"proj-b", "proj-c"}, v.ProjectIDs())
	require.Nil(t, v.ByProjectID("proj-a"))
}

func TestGeminiReloadUnderConcurrentDraws(t *testing.T) {
	var swapped atomic.Bool
	g := NewGemini(func() ([]credential.GeminiKey, error) {
		if swapped.Load() {
			return []credential.GeminiKey{"new-a", "new-b", "new-c"}, nil
		}
		return []credential.GeminiKey{"old-a", "old-b"}, nil
	})

	valid := map[credential.GeminiKey]bool{
		"old-a": true, "old-b": true,
		"new-a": true, "new-b": true, "new-c": true,
	}

	stop := make(chan struct{})
	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				k, err := g.Next()
				if err != nil {
					errs <- err
					return
				}
				if !valid[k] {
					errs <- fmt.Errorf("unexpected key %q", k)
					return
				}
			}
		}()
	}

	swapped.Store(true)
	for i := 0; i < 50; i++ {
		require.NoError(t, g.Reload())
	}
	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	// After the last reload only the new pool serves.
	for i := 0; i < 6; i++ {
		k, err := g.Next()
		require.NoError(t, err)
		require.Contains(t, []credential.GeminiKey{"new-a", "new-b", "new-c"}, k)
	}
}

func TestReloadUnchangedSourceIsIdempotent(t *testing.T) {
	g := NewGemini(staticGemini("ka", "kb"))
	require.NoError(t, g.Reload())
	first := g.Keys()
	require.NoError(t, g.Reload())
	require.Equal(t, first, g.Keys())

	pool := vertexPool("proj-a", "proj-b")
	v := NewVertex(func() ([]*credential.Vertex, error) { return pool, nil })
	require.NoError(t, v.Reload())
	ids := v.ProjectIDs()
	require.NoError(t, v.Reload())
	require.Equal(t, ids, v.ProjectIDs())
}
