package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/shinkai/pkg/api"
	"github.com/go-go-golems/shinkai/pkg/api/apitest"
	"github.com/go-go-golems/shinkai/pkg/archive"
	"github.com/go-go-golems/shinkai/pkg/conversation"
)

const jobInbox = "job_inbox::jobid_1::false"

type harness struct {
	t       *testing.T
	node    *apitest.Node
	dir     string
	config  string
	confirm func(string) (bool, error)
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(config, []byte("node:\n  timeout: 10\n"), 0o644))
	return &harness{
		t:      t,
		node:   apitest.NewNode(t),
		dir:    dir,
		config: config,
	}
}

func (h *harness) archivePath() string {
	return filepath.Join(h.dir, "archive.db")
}

func (h *harness) exec(ctx context.Context, args ...string) (string, *Env, error) {
	root, env := newRootCommand(viper.New())
	env.isTerminal = func() bool { return false }
	if h.confirm != nil {
		env.confirm = h.confirm
	}

	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{
		"--config", h.config,
		"--node-address", h.node.URL(),
		"--api-token", apitest.DefaultToken,
		"--archive-path", h.archivePath(),
		"--log-level", "error",
	}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), env, err
}

func (h *harness) run(args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, _, err := h.exec(ctx, args...)
	require.NoError(h.t, err, "shinkai %s", strings.Join(args, " "))
	return out
}

func (h *harness) fail(args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _, err := h.exec(ctx, args...)
	require.Error(h.t, err, "shinkai %s", strings.Join(args, " "))
	return err
}

func decodeJSON[T any](t *testing.T, s string) T {
	var ret T
	require.NoError(t, json.Unmarshal([]byte(s), &ret), s)
	return ret
}

func (h *harness) fillJob(n int) {
	for i := 0; i < n; i++ {
		h.node.AppendMessage(jobInbox, fmt.Sprintf("message %d", i), i%2 == 0)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	out := h.run("health")
	assert.Contains(t, out, "status: ok")
	assert.Contains(t, out, apitest.LocalIdentity)

	health := decodeJSON[api.HealthResponse](t, h.run("health", "-o", "json"))
	assert.Equal(t, "0.9.0-test", health.Version)
}

func TestHealthRecordsMetrics(t *testing.T) {
	h := newHarness(t)
	_, env, err := h.exec(context.Background(), "health")
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(env.Registry, "shinkai_api_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWrongToken(t *testing.T) {
	h := newHarness(t)
	h.node.Token = "other-token"
	h.fail("inboxes", "list")
}

func TestInvalidSettings(t *testing.T) {
	h := newHarness(t)
	err := h.fail("health", "-o", "xml")
	assert.Contains(t, err.Error(), "xml")

	err = h.fail("conversation", "history", jobInbox, "--page-size", "0")
	assert.Contains(t, err.Error(), "page size")

	err = h.fail("health", "--node-address", "http://example.com:9550")
	assert.Contains(t, err.Error(), "node")
}

func TestConfigShow(t *testing.T) {
	h := newHarness(t)
	out := h.run("config", "show")
	assert.NotContains(t, out, apitest.DefaultToken)
	assert.Contains(t, out, "***")
	assert.Contains(t, out, "timeout: 10")
	assert.Contains(t, out, h.node.URL())
	assert.Contains(t, out, "page_size: 20")
}

func TestInboxesList(t *testing.T) {
	h := newHarness(t)
	h.fillJob(3)
	h.node.AddInbox("inbox::@@alice.shinkai::@@bob.shinkai::false", "bob")

	rows := decodeJSON[[]inboxRow](t, h.run("inboxes", "list", "-o", "json", "--preview", "2"))
	require.Len(t, rows, 2)
	assert.Equal(t, jobInbox, rows[0].InboxID)
	assert.True(t, rows[0].Job)
	assert.Equal(t, "message 2", rows[0].LastMessage)
	require.Len(t, rows[0].Preview, 2)
	assert.Equal(t, "message 1", rows[0].Preview[0].Content)
	assert.Equal(t, "message 2", rows[0].Preview[1].Content)
	assert.False(t, rows[1].Job)
	assert.Equal(t, "bob", rows[1].Name)
	assert.Empty(t, rows[1].Preview)

	rows = decodeJSON[[]inboxRow](t, h.run("inboxes", "list", "-o", "json", "--filter", "job_*"))
	require.Len(t, rows, 1)
	assert.Equal(t, jobInbox, rows[0].InboxID)

	rows = decodeJSON[[]inboxRow](t, h.run("inboxes", "list", "-o", "json", "--filter", "nothing*"))
	assert.Empty(t, rows)
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	h.fillJob(25)

	out := h.run("conversation", "history", jobInbox, "--concise", "--page-size", "10", "--local-name", "you")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, apitest.LocalIdentity+"/"+apitest.AgentSubidentity+": message 15", lines[0])
	assert.Equal(t, "you: message 24", lines[9])

	out = h.run("conversation", "history", jobInbox, "--concise", "--page-size", "10", "--all")
	lines = strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 25)
	assert.True(t, strings.HasSuffix(lines[0], ": message 0"))
	assert.True(t, strings.HasSuffix(lines[24], ": message 24"))

	out = h.run("conversation", "history", jobInbox)
	assert.Contains(t, out, "[2024-05-01 12:00:")
	assert.Contains(t, out, "\n  message 24\n")
}

func TestHistoryRaw(t *testing.T) {
	h := newHarness(t)
	h.fillJob(25)

	v := decodeJSON[conversation.View](t, h.run("conversation", "history", jobInbox, "--raw", "-o", "json"))
	assert.Equal(t, jobInbox, v.InboxID)
	require.Len(t, v.Messages, conversation.DefaultPageSize)
	assert.Equal(t, "message 24", v.Messages[len(v.Messages)-1].Content)
	assert.True(t, v.Messages[0].IsLocal != v.Messages[1].IsLocal)

	v = decodeJSON[conversation.View](t, h.run("conversation", "history", jobInbox, "--raw", "-o", "json", "--all", "--cursor-strategy", "oldest"))
	assert.Len(t, v.Messages, 25)
}

func TestHistoryCodeBlocks(t *testing.T) {
	h := newHarness(t)
	h.node.AppendMessage(jobInbox, "write me a script", true)
	h.node.AppendMessage(jobInbox, "Sure:\n\n```bash\necho hi\n```\n\nand\n\n```python\nprint('hi')\n```\n", false)

	rows := decodeJSON[[]codeBlockRow](t, h.run("conversation", "history", jobInbox, "--code", "-o", "json"))
	require.Len(t, rows, 2)
	assert.Equal(t, "bash", rows[0].Language)
	assert.Equal(t, "echo hi\n", rows[0].Code)

	rows = decodeJSON[[]codeBlockRow](t, h.run("conversation", "history", jobInbox, "--code-language", "python", "-o", "json"))
	require.Len(t, rows, 1)
	assert.Equal(t, "print('hi')\n", rows[0].Code)
}

func TestHistoryRender(t *testing.T) {
	h := newHarness(t)
	h.node.AppendMessage(jobInbox, "what is **go**?", true)
	h.node.AppendMessage(jobInbox, "A programming language.", false)

	out := h.run("conversation", "history", jobInbox, "--render", "--local-name", "you")
	assert.Contains(t, out, "you")
	assert.Contains(t, out, "programming language")
	assert.Contains(t, out, "2024-05-01")
}

func TestHistoryUnknownInbox(t *testing.T) {
	h := newHarness(t)
	h.fail("conversation", "history", "job_inbox::missing::false")
}

func TestSendAndCreate(t *testing.T) {
	h := newHarness(t)

	created := decodeJSON[createdJob](t, h.run("conversation", "create", "my_agent", "-o", "json"))
	require.True(t, strings.HasPrefix(created.JobID, "jobid_"))
	assert.Equal(t, "job_inbox::"+created.JobID+"::false", created.InboxID)

	resp := decodeJSON[api.SendJobMessageResponse](t, h.run("conversation", "send", created.InboxID, "hello", "world", "-o", "json"))
	assert.Equal(t, created.InboxID, resp.Inbox)

	msgs := h.node.Messages(created.InboxID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello world", msgs[0].JobMessage.Content)

	err := h.fail("conversation", "send", "inbox::@@alice.shinkai::@@bob.shinkai::false", "hi")
	assert.Contains(t, err.Error(), "job")
}

func TestRename(t *testing.T) {
	h := newHarness(t)
	h.node.AddInbox(jobInbox, "")
	h.run("conversation", "rename", jobInbox, "planning")

	rows := decodeJSON[[]inboxRow](t, h.run("inboxes", "list", "-o", "json"))
	require.Len(t, rows, 1)
	assert.Equal(t, "planning", rows[0].Name)
}

func TestTailExitsOnReply(t *testing.T) {
	h := newHarness(t)
	h.node.AppendMessage(jobInbox, "ping", true)
	h.node.AppendMessage(jobInbox, "pong", false)

	out := h.run("conversation", "tail", jobInbox, "--exit-on-reply", "--concise", "--local-name", "you")
	assert.Equal(t, "you: ping\n"+apitest.LocalIdentity+"/"+apitest.AgentSubidentity+": pong\n", out)
}

func TestTailWaitsForReply(t *testing.T) {
	h := newHarness(t)
	h.node.AppendMessage(jobInbox, "ping", true)

	go func() {
		time.Sleep(200 * time.Millisecond)
		h.node.AppendMessage(jobInbox, "pong", false)
	}()

	out := h.run("conversation", "tail", jobInbox, "--exit-on-reply", "--concise", "--refresh-interval", "20ms")
	assert.Contains(t, out, ": ping\n")
	assert.Contains(t, out, ": pong\n")
	assert.Less(t, strings.Index(out, "ping"), strings.Index(out, "pong"))
	assert.NotEmpty(t, h.node.Requests("/v2/last_messages"))
}

func TestTailOlderPages(t *testing.T) {
	h := newHarness(t)
	h.fillJob(25)
	h.node.AppendMessage(jobInbox, "done", false)

	out := h.run("conversation", "tail", jobInbox, "--exit-on-reply", "--concise", "--page-size", "10")
	assert.NotContains(t, out, ": message 15\n")
	assert.Contains(t, out, ": message 16\n")

	out = h.run("conversation", "tail", jobInbox, "--exit-on-reply", "--concise", "--page-size", "10", "--older", "1")
	assert.Contains(t, out, ": message 6\n")
	assert.NotContains(t, out, ": message 5\n")
	assert.Less(t, strings.Index(out, ": message 6\n"), strings.Index(out, ": message 16\n"))
	assert.Less(t, strings.Index(out, ": message 16\n"), strings.Index(out, ": done\n"))
	assert.Equal(t, 20, strings.Count(out, "\n"))
}

func TestTailStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	h.node.AppendMessage(jobInbox, "ping", true)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	out, _, err := h.exec(ctx, "conversation", "tail", jobInbox, "--no-refresh", "--concise")
	require.NoError(t, err)
	assert.Contains(t, out, ": ping\n")
}

func TestTailEvents(t *testing.T) {
	h := newHarness(t)
	h.node.AppendMessage(jobInbox, "pong", false)

	out := h.run("conversation", "tail", jobInbox, "--exit-on-reply", "--events")
	assert.Contains(t, out, "view-updated")
	assert.Contains(t, out, "pong")
}

func TestExportJSON(t *testing.T) {
	h := newHarness(t)
	h.fillJob(25)
	path := filepath.Join(h.dir, "out", "job.json")

	res := decodeJSON[exportResult](t, h.run("conversation", "export", jobInbox, "--json", path, "--page-size", "10", "-o", "json"))
	assert.Equal(t, 25, res.Messages)
	assert.Equal(t, path, res.JSON)
	assert.Empty(t, res.SQLite)

	doc, err := archive.ImportJSON(afero.NewOsFs(), path)
	require.NoError(t, err)
	assert.Equal(t, jobInbox, doc.InboxID)
	require.Len(t, doc.Messages, 25)
	assert.Equal(t, "message 0", doc.Messages[0].Content)

	res = decodeJSON[exportResult](t, h.run("conversation", "export", jobInbox, "--json", path, "--newest-only", "-o", "json"))
	assert.Equal(t, conversation.DefaultPageSize, res.Messages)
}

func TestExportJSONDir(t *testing.T) {
	h := newHarness(t)
	h.fillJob(3)
	dir := filepath.Join(h.dir, "exports")

	res := decodeJSON[exportResult](t, h.run("conversation", "export", jobInbox, "--json-dir", dir, "-o", "json"))
	assert.True(t, strings.HasPrefix(res.JSON, dir))
	assert.True(t, strings.HasSuffix(res.JSON, "-job_inbox_jobid_1_false.json"))

	matches, err := filepath.Glob(filepath.Join(dir, "*", "*", "*", "*.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{res.JSON}, matches)
}

func TestExportAndBrowseArchive(t *testing.T) {
	h := newHarness(t)
	h.fillJob(5)

	res := decodeJSON[exportResult](t, h.run("conversation", "export", jobInbox, "-o", "json"))
	assert.Equal(t, h.archivePath(), res.SQLite)
	assert.Equal(t, 5, res.Messages)

	list := decodeJSON[[]archive.Metadata](t, h.run("archive", "list", "-o", "json"))
	require.Len(t, list, 1)
	assert.Equal(t, jobInbox, list[0].InboxID)
	assert.Equal(t, 5, list[0].MessageCount)

	v := decodeJSON[conversation.View](t, h.run("archive", "show", jobInbox, "-o", "json"))
	require.Len(t, v.Messages, 5)
	assert.Equal(t, "message 4", v.Messages[4].Content)

	h.run("archive", "rm", jobInbox)
	list = decodeJSON[[]archive.Metadata](t, h.run("archive", "list", "-o", "json"))
	assert.Empty(t, list)

	err := h.fail("archive", "show", jobInbox)
	assert.Contains(t, err.Error(), "not found")
}

func TestArchiveImport(t *testing.T) {
	h := newHarness(t)
	h.fillJob(4)
	path := filepath.Join(h.dir, "job.json")
	other := filepath.Join(h.dir, "other.db")

	h.run("conversation", "export", jobInbox, "--json", path)
	res := decodeJSON[exportResult](t, h.run("archive", "import", path, "--sqlite", other, "-o", "json"))
	assert.Equal(t, jobInbox, res.InboxID)
	assert.Equal(t, 4, res.Messages)

	list := decodeJSON[[]archive.Metadata](t, h.run("archive", "list", "--sqlite", other, "-o", "json"))
	require.Len(t, list, 1)
	assert.Equal(t, 4, list[0].MessageCount)

	// the configured archive was not touched
	list = decodeJSON[[]archive.Metadata](t, h.run("archive", "list", "-o", "json"))
	assert.Empty(t, list)
}

func TestAgents(t *testing.T) {
	h := newHarness(t)

	row := decodeJSON[agentRow](t, h.run("agents", "add", "my_gpt", "--provider", "OpenAI", "--model", "gpt-4o", "--api-key", "sk-test", "-o", "json"))
	assert.Equal(t, apitest.LocalIdentity+"/main/agent/my_gpt", row.FullIdentityName)
	h.run("agents", "add", "llama", "--provider", "Ollama", "--model", "llama3.1", "--external-url", "http://localhost:11434")

	providers := h.node.Providers()
	require.Len(t, providers, 2)
	assert.Equal(t, "sk-test", providers[0].APIKey)

	rows := decodeJSON[[]agentRow](t, h.run("agents", "list", "-o", "json"))
	require.Len(t, rows, 2)

	rows = decodeJSON[[]agentRow](t, h.run("agents", "list", "--filter", "Ollama", "-o", "json"))
	require.Len(t, rows, 1)
	assert.Equal(t, "llama", rows[0].ID)
	assert.Equal(t, "llama3.1", rows[0].Model)

	err := h.fail("agents", "add", "my_gpt", "--provider", "OpenAI", "--model", "gpt-4o")
	assert.Contains(t, err.Error(), "409")
	err = h.fail("agents", "add", "broken")
	assert.Contains(t, err.Error(), "--provider")

	h.run("agents", "remove", "my_gpt")
	providers = h.node.Providers()
	require.Len(t, providers, 1)
	assert.Equal(t, "llama", providers[0].ID)
}

func TestTools(t *testing.T) {
	h := newHarness(t)
	h.node.AddTool(api.ToolHeader{
		Name:          "Weather",
		Description:   "Current weather for a city",
		ToolRouterKey: "local:::deno:::weather",
		ToolType:      "Deno",
		Enabled:       true,
	}, api.Tool{Type: "Deno", Content: []json.RawMessage{json.RawMessage(`{"name":"Weather"}`)}})
	h.node.AddTool(api.ToolHeader{
		Name:          "Search",
		Description:   "Web search",
		ToolRouterKey: "local:::python:::search",
		ToolType:      "Python",
	}, api.Tool{Type: "Python"})

	headers := decodeJSON[[]api.ToolHeader](t, h.run("tools", "list", "-o", "json"))
	require.Len(t, headers, 2)

	headers = decodeJSON[[]api.ToolHeader](t, h.run("tools", "list", "--filter", "*deno*", "-o", "json"))
	require.Len(t, headers, 1)
	assert.Equal(t, "Weather", headers[0].Name)

	headers = decodeJSON[[]api.ToolHeader](t, h.run("tools", "search", "web", "-o", "json"))
	require.Len(t, headers, 1)
	assert.Equal(t, "Search", headers[0].Name)

	tool := decodeJSON[api.Tool](t, h.run("tools", "get", "local:::deno:::weather", "-o", "json"))
	assert.Equal(t, "Deno", tool.Type)
	require.Len(t, tool.Content, 1)

	h.fail("tools", "get", "local:::deno:::missing")
}

func TestPrompts(t *testing.T) {
	h := newHarness(t)

	p := decodeJSON[api.Prompt](t, h.run("prompts", "create", "summarize", "Summarize", "this", "--favorite", "-o", "json"))
	assert.Equal(t, "Summarize this", p.Prompt)
	assert.True(t, p.IsFavorite)
	h.run("prompts", "create", "translate", "Translate to French", "--system")

	prompts := decodeJSON[[]api.Prompt](t, h.run("prompts", "list", "-o", "json"))
	require.Len(t, prompts, 2)

	prompts = decodeJSON[[]api.Prompt](t, h.run("prompts", "list", "--filter", "trans*", "-o", "json"))
	require.Len(t, prompts, 1)
	assert.True(t, prompts[0].IsSystem)

	prompts = decodeJSON[[]api.Prompt](t, h.run("prompts", "search", "french", "-o", "json"))
	require.Len(t, prompts, 1)
	assert.Equal(t, "translate", prompts[0].Name)

	h.run("prompts", "delete", "summarize")
	_, ok := h.node.Prompts()["summarize"]
	assert.False(t, ok)
	h.fail("prompts", "delete", "summarize")
}

func (h *harness) fillFS() {
	h.node.AddItem(api.DirectoryContent{Name: "docs", Path: "/docs", IsDirectory: true})
	h.node.AddItem(api.DirectoryContent{Name: "notes", Path: "/docs/notes", IsDirectory: true})
	h.node.AddItem(api.DirectoryContent{Name: "archive", Path: "/archive", IsDirectory: true})
	h.node.AddItem(api.DirectoryContent{Name: "report.pdf", Path: "/docs/report.pdf", HasEmbeddings: true})
}

func TestFSList(t *testing.T) {
	h := newHarness(t)
	h.fillFS()

	items := decodeJSON[[]api.DirectoryContent](t, h.run("fs", "ls", "-o", "json"))
	require.Len(t, items, 2)
	assert.Equal(t, "/archive", items[0].Path)
	assert.Equal(t, "/docs", items[1].Path)

	items = decodeJSON[[]api.DirectoryContent](t, h.run("fs", "ls", "/docs", "-o", "json"))
	require.Len(t, items, 2)
	assert.Equal(t, "/docs/notes", items[0].Path)
	assert.Equal(t, "/docs/report.pdf", items[1].Path)

	h.fail("fs", "ls", "/missing")
}

func TestFSMkdirAndMove(t *testing.T) {
	h := newHarness(t)
	h.fillFS()

	h.run("fs", "mkdir", "/archive", "2024")
	item, ok := h.node.Item("/archive/2024")
	require.True(t, ok)
	assert.True(t, item.IsDirectory)

	h.run("fs", "mv", "/docs/report.pdf", "/archive/2024")
	_, ok = h.node.Item("/docs/report.pdf")
	assert.False(t, ok)
	_, ok = h.node.Item("/archive/2024/report.pdf")
	assert.True(t, ok)

	h.run("fs", "mv", "/docs", "/archive")
	_, ok = h.node.Item("/archive/docs/notes")
	assert.True(t, ok)

	err := h.fail("fs", "mv", "/archive", "/archive/docs")
	assert.Contains(t, err.Error(), "itself")

	err = h.fail("fs", "mv", "/archive/docs", "/archive")
	assert.Contains(t, err.Error(), "already")

	err = h.fail("fs", "mv", "/archive/docs", "/archive/2024/report.pdf")
	assert.Contains(t, err.Error(), "not a folder")

	err = h.fail("fs", "mv", "/nowhere.txt", "/archive")
	assert.Contains(t, err.Error(), "not found")
}

func TestFSRemove(t *testing.T) {
	h := newHarness(t)
	h.fillFS()

	var asked []string
	answer := false
	h.confirm = func(query string) (bool, error) {
		asked = append(asked, query)
		return answer, nil
	}

	h.run("fs", "rm", "/docs")
	assert.Equal(t, []string{"Remove /docs?"}, asked)
	_, ok := h.node.Item("/docs")
	assert.True(t, ok)

	answer = true
	h.run("fs", "rm", "/docs")
	_, ok = h.node.Item("/docs")
	assert.False(t, ok)
	_, ok = h.node.Item("/docs/report.pdf")
	assert.False(t, ok)

	h.run("fs", "rm", "/archive", "--yes")
	assert.Len(t, asked, 2)
	_, ok = h.node.Item("/archive")
	assert.False(t, ok)
}
