package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/coachflow/pkg/adapters/file"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
	"github.com/aretw0/coachflow/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.ManagedStore    = (*file.Store)(nil)
	_ ports.SequenceLoader  = (*file.Loader)(nil)
	_ ports.Watchable       = (*file.Loader)(nil)
	_ ports.ContentResolver = file.Content(nil)
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestStore_Contract(t *testing.T) {
	ports.RunKeyValueStoreContract(t, file.NewStore(filepath.Join(t.TempDir(), "store.json")))
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "store.json")

	first := file.NewStore(path)
	require.NoError(t, first.Set(ctx, "user.streak", domain.Int(3)))
	require.NoError(t, first.Set(ctx, "user.ratio", domain.Float(2)))
	require.NoError(t, first.Set(ctx, "task.activeDays", domain.List{domain.Int(1), domain.Int(5)}))

	second := file.NewStore(path)
	v, ok, err := second.Get(ctx, "user.streak")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.Int(3), v)

	v, _, err = second.Get(ctx, "user.ratio")
	require.NoError(t, err)
	assert.Equal(t, domain.Float(2), v, "whole floats stay floats on disk")

	v, _, err = second.Get(ctx, "task.activeDays")
	require.NoError(t, err)
	assert.Equal(t, domain.List{domain.Int(1), domain.Int(5)}, v)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "store.json", "[1,2]")

	_, _, err := file.NewStore(filepath.Join(dir, "store.json")).Get(context.Background(), "x")
	assert.Error(t, err)
}

const introYAML = `
sequenceId: intro
messages:
  - id: "1"
    type: bot
    text: Hello
    nextMessageId: "2"
  - id: "2"
    type: bot
    text: Bye
`

const checkinJSON = `{"sequenceId": "checkin", "messages": [{"id": "c1", "type": "textInput", "text": "How was it?"}]}`

func TestLoader_Contract(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "intro.yaml", introYAML)
	writeFile(t, dir, "daily-checkin.json", checkinJSON)
	writeFile(t, dir, "README.md", "not a sequence")

	tests.SequenceLoaderContractTest(t, file.NewLoader(dir), map[string]int{
		"intro":   2,
		"checkin": 1,
	})
}

func TestLoader_FileNameFallbackID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "week1.yml", "messages:\n  - id: a\n    type: bot\n    text: Hi\n")

	seq, err := file.NewLoader(dir).Load(context.Background(), "week1")
	require.NoError(t, err)
	assert.Equal(t, "week1", seq.ID)
}

func TestLoader_Collision(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", introYAML)
	writeFile(t, dir, "b.yaml", introYAML)

	_, err := file.NewLoader(dir).List(context.Background())
	assert.ErrorContains(t, err, "collision")
}

func TestLoader_ParseErrorSurfaces(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "sequenceId: broken\nmessages:\n  - type: bot\n")

	_, err := file.NewLoader(dir).Load(context.Background(), "broken")
	var perr *domain.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "broken", perr.SequenceID)
}

func TestLoader_Watch(t *testing.T) {
	dir := t.TempDir()
	loader := file.NewLoader(dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := loader.Watch(ctx)
	require.NoError(t, err)

	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "intro.yaml", introYAML)

	select {
	case id := <-changes:
		assert.Equal(t, "intro", id)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLoadContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "content.yaml", `
greeting:
  welcome: "Welcome, {user.name|friend}!"
  bye: See you
tips.first: Drink water
`)
	content, err := file.LoadContent(filepath.Join(dir, "content.yaml"))
	require.NoError(t, err)

	s, ok := content.Resolve(context.Background(), "greeting.welcome")
	assert.True(t, ok)
	assert.Equal(t, "Welcome, {user.name|friend}!", s)

	s, ok = content.Resolve(context.Background(), "tips.first")
	assert.True(t, ok)
	assert.Equal(t, "Drink water", s)

	_, ok = content.Resolve(context.Background(), "greeting")
	assert.False(t, ok)
}

func TestLoadFormatters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "formatters.yaml", `
user.mood:
  great: feeling great
  meh: so-so
task:
  level:
    1: easy
    2: hard
`)
	f, err := file.LoadFormatters(filepath.Join(dir, "formatters.yaml"))
	require.NoError(t, err)

	s, ok := f.Lookup("user.mood", "great")
	assert.True(t, ok)
	assert.Equal(t, "feeling great", s)

	s, ok = f.Lookup("task.level", "2")
	assert.True(t, ok)
	assert.Equal(t, "hard", s)

	_, err = file.LoadFormatters(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
