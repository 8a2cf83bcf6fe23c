// Package apitest provides an in-memory fake Shinkai node for tests.
//
// The fake implements the v2 endpoints used by this module over plain maps,
// checks the bearer token, and records every request so tests can assert on
// cursors and page sizes.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/go-go-golems/shinkai/pkg/api"
	"github.com/go-go-golems/shinkai/pkg/inbox"
)

const (
	DefaultToken     = "test-token"
	LocalIdentity    = "@@localhost.sep-shinkai"
	LocalProfile     = "main"
	AgentSubidentity = "main/agent/test_agent"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type RecordedRequest struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
}

type inboxState struct {
	meta     api.Inbox
	messages []api.ChatMessage
}

// Node is a fake node served over httptest.
type Node struct {
	Token string

	server *httptest.Server

	mu        sync.Mutex
	seq       int
	inboxes   map[string]*inboxState
	order     []string
	providers []api.LLMProvider
	items     map[string]api.DirectoryContent
	tools     map[string]api.Tool
	headers   map[string]api.ToolHeader
	prompts   map[string]api.Prompt
	requests  []RecordedRequest
	failures  map[string][]int
	delays    map[string]chan struct{}
}

// NewNode starts a fake node that is closed when the test ends.
func NewNode(t testing.TB) *Node {
	n := &Node{
		Token:    DefaultToken,
		inboxes:  map[string]*inboxState{},
		items:    map[string]api.DirectoryContent{},
		tools:    map[string]api.Tool{},
		headers:  map[string]api.ToolHeader{},
		prompts:  map[string]api.Prompt{},
		failures: map[string][]int{},
		delays:   map[string]chan struct{}{},
	}
	n.server = httptest.NewServer(n.router())
	t.Cleanup(n.server.Close)
	return n
}

func (n *Node) URL() string {
	return n.server.URL
}

// Client returns an api.Client pointed at the fake with the right token.
func (n *Node) Client(options ...api.ClientOption) *api.Client {
	return api.NewClient(n.URL(), n.Token, options...)
}

// FailNext makes the next calls to endpoint (e.g. "/v2/last_messages")
// answer with the given statuses, one per call.
func (n *Node) FailNext(endpoint string, statuses ...int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[endpoint] = append(n.failures[endpoint], statuses...)
}

// Hold blocks requests to endpoint until the returned release func is called.
func (n *Node) Hold(endpoint string) (release func()) {
	ch := make(chan struct{})
	n.mu.Lock()
	n.delays[endpoint] = ch
	n.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.delays, endpoint)
			n.mu.Unlock()
			close(ch)
		})
	}
}

func (n *Node) Requests(endpoint string) []RecordedRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ret []RecordedRequest
	for _, r := range n.requests {
		if endpoint == "" || r.Path == endpoint {
			ret = append(ret, r)
		}
	}
	return ret
}

// AddInbox registers an empty inbox.
func (n *Node) AddInbox(inboxID string, customName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.addInboxLocked(inboxID, customName)
}

func (n *Node) addInboxLocked(inboxID string, customName string) *inboxState {
	if s, ok := n.inboxes[inboxID]; ok {
		return s
	}
	s := &inboxState{meta: api.Inbox{
		InboxID:         inboxID,
		CustomName:      customName,
		DatetimeCreated: n.nextTimeLocked().Format(time.RFC3339Nano),
	}}
	n.inboxes[inboxID] = s
	n.order = append(n.order, inboxID)
	return s
}

func (n *Node) nextTimeLocked() time.Time {
	n.seq++
	return baseTime.Add(time.Duration(n.seq) * time.Second)
}

// AppendMessage appends a message to an inbox, creating it if needed. Local
// messages come from the user profile, the others from an agent.
func (n *Node) AppendMessage(inboxID string, content string, local bool) api.ChatMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.appendMessageLocked(inboxID, content, local)
}

func (n *Node) appendMessageLocked(inboxID string, content string, local bool) api.ChatMessage {
	s := n.addInboxLocked(inboxID, "")
	sub := LocalProfile
	if !local {
		sub = AgentSubidentity
	}
	jobID, _ := inbox.JobID(inboxID)
	msg := api.ChatMessage{
		Hash:              strings.ReplaceAll(uuid.NewString(), "-", ""),
		Sender:            LocalIdentity,
		SenderSubidentity: sub,
		Receiver:          LocalIdentity,
		Inbox:             inboxID,
		JobMessage: api.JobMessage{
			JobID:   jobID,
			Content: content,
		},
		NodeAPIData: api.NodeAPIData{
			NodeTimestamp: n.nextTimeLocked().Format(time.RFC3339Nano),
		},
	}
	if len(s.messages) > 0 {
		msg.NodeAPIData.ParentHash = s.messages[len(s.messages)-1].Hash
	}
	msg.NodeAPIData.NodeMessageHash = msg.Hash
	s.messages = append(s.messages, msg)
	last := msg
	s.meta.LastMessage = &last
	return msg
}

// Messages returns a copy of an inbox's messages, oldest first.
func (n *Node) Messages(inboxID string) []api.ChatMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.inboxes[inboxID]
	if !ok {
		return nil
	}
	return append([]api.ChatMessage(nil), s.messages...)
}

func (n *Node) AddItem(item api.DirectoryContent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items[item.Path] = item
}

func (n *Node) Item(p string) (api.DirectoryContent, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	item, ok := n.items[p]
	return item, ok
}

func (n *Node) AddTool(header api.ToolHeader, tool api.Tool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.headers[header.ToolRouterKey] = header
	n.tools[header.ToolRouterKey] = tool
}

func (n *Node) Providers() []api.LLMProvider {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]api.LLMProvider(nil), n.providers...)
}

func (n *Node) Prompts() map[string]api.Prompt {
	n.mu.Lock()
	defer n.mu.Unlock()
	ret := make(map[string]api.Prompt, len(n.prompts))
	for k, v := range n.prompts {
		ret[k] = v
	}
	return ret
}

func (n *Node) router() http.Handler {
	r := chi.NewRouter()
	r.Use(n.record, n.injectFailures, n.auth)
	r.Route("/v2", func(r chi.Router) {
		r.Get("/health", n.health)

		r.Get("/all_inboxes", n.allInboxes)
		r.Get("/last_messages", n.lastMessages)
		r.Post("/create_job", n.createJob)
		r.Post("/job_message", n.jobMessage)
		r.Post("/update_job_inbox_name", n.updateInboxName)

		r.Get("/available_llm_providers", n.listProviders)
		r.Post("/add_llm_provider", n.addProvider)
		r.Post("/remove_llm_provider", n.removeProvider)

		r.Get("/list_directory_contents", n.listDirectory)
		r.Post("/create_folder", n.createFolder)
		r.Post("/move_item", n.moveItem)
		r.Post("/move_folder", n.moveFolder)
		r.Post("/remove_item", n.removeItem)

		r.Get("/list_all_shinkai_tools", n.listTools)
		r.Get("/search_shinkai_tool", n.searchTools)
		r.Get("/get_shinkai_tool", n.getTool)
		r.Post("/add_shinkai_tool", n.addTool)
		r.Post("/set_shinkai_tool", n.setTool)

		r.Get("/get_all_custom_prompts", n.listPrompts)
		r.Get("/search_custom_prompts", n.searchPrompts)
		r.Post("/add_custom_prompt", n.addPrompt)
		r.Post("/update_custom_prompt", n.updatePrompt)
		r.Post("/delete_custom_prompt", n.deletePrompt)
	})
	return r
}

func (n *Node) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		n.requests = append(n.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
		})
		hold := n.delays[r.URL.Path]
		n.mu.Unlock()
		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (n *Node) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		var status int
		if queued := n.failures[r.URL.Path]; len(queued) > 0 {
			status = queued[0]
			n.failures[r.URL.Path] = queued[1:]
		}
		n.mu.Unlock()
		if status != 0 {
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (n *Node) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+n.Token {
			writeError(w, http.StatusUnauthorized, "Invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"code": http.StatusText(status), "message": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (n *Node) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:   "ok",
		NodeName: LocalIdentity,
		Version:  "0.9.0-test",
	})
}

func (n *Node) allInboxes(w http.ResponseWriter, _ *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ret := make([]api.Inbox, 0, len(n.order))
	for _, id := range n.order {
		ret = append(ret, n.inboxes[id].meta)
	}
	writeJSON(w, http.StatusOK, ret)
}

// lastMessages returns up to limit messages strictly older than offset_key,
// oldest first, or the newest limit messages without offset_key.
func (n *Node) lastMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	inboxName := q.Get("inbox_name")
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	offsetKey := q.Get("offset_key")

	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.inboxes[inboxName]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("inbox %s not found", inboxName))
		return
	}

	end := len(s.messages)
	if offsetKey != "" {
		end = -1
		for i, m := range s.messages {
			if m.Hash == offsetKey {
				end = i
				break
			}
		}
		if end < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown offset key %s", offsetKey))
			return
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	writeJSON(w, http.StatusOK, append([]api.ChatMessage{}, s.messages[start:end]...))
}

func (n *Node) createJob(w http.ResponseWriter, r *http.Request) {
	var req api.CreateJobRequest
	if !decode(w, r, &req) {
		return
	}
	if req.LLMProvider == "" {
		writeError(w, http.StatusBadRequest, "llm_provider is required")
		return
	}
	jobID := "jobid_" + uuid.NewString()
	n.AddInbox(inbox.JobInboxID(jobID), "")
	writeJSON(w, http.StatusOK, api.CreateJobResponse{JobID: jobID})
}

func (n *Node) jobMessage(w http.ResponseWriter, r *http.Request) {
	var req api.SendJobMessageRequest
	if !decode(w, r, &req) {
		return
	}
	inboxID := inbox.JobInboxID(req.JobMessage.JobID)
	n.mu.Lock()
	if _, ok := n.inboxes[inboxID]; !ok {
		n.mu.Unlock()
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	msg := n.appendMessageLocked(inboxID, req.JobMessage.Content, true)
	n.mu.Unlock()
	writeJSON(w, http.StatusOK, api.SendJobMessageResponse{
		MessageID:       msg.Hash,
		ParentMessageID: msg.NodeAPIData.ParentHash,
		Inbox:           inboxID,
	})
}

func (n *Node) updateInboxName(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateInboxNameRequest
	if !decode(w, r, &req) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.inboxes[req.InboxName]
	if !ok {
		writeError(w, http.StatusNotFound, "inbox not found")
		return
	}
	s.meta.CustomName = req.CustomName
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (n *Node) listProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, append([]api.LLMProvider{}, n.Providers()...))
}

func (n *Node) addProvider(w http.ResponseWriter, r *http.Request) {
	var p api.LLMProvider
	if !decode(w, r, &p) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.providers {
		if existing.ID == p.ID {
			writeError(w, http.StatusConflict, "llm provider already exists")
			return
		}
	}
	n.providers = append(n.providers, p)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (n *Node) removeProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"llm_provider_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, p := range n.providers {
		if p.ID == req.ID {
			n.providers = append(n.providers[:i], n.providers[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "llm provider not found")
}

func (n *Node) isDirLocked(p string) bool {
	if p == "/" {
		return true
	}
	item, ok := n.items[p]
	return ok && item.IsDirectory
}

func (n *Node) childrenLocked(dir string) []api.DirectoryContent {
	var ret []api.DirectoryContent
	for p, item := range n.items {
		if path.Dir(p) == dir {
			if item.IsDirectory {
				item.Children = n.childrenLocked(p)
			}
			ret = append(ret, item)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Path < ret[j].Path })
	return ret
}

func (n *Node) listDirectory(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("path")
	if dir == "" {
		dir = "/"
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.isDirLocked(dir) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("folder %s not found", dir))
		return
	}
	ret := n.childrenLocked(dir)
	if ret == nil {
		ret = []api.DirectoryContent{}
	}
	writeJSON(w, http.StatusOK, ret)
}

func (n *Node) createFolder(w http.ResponseWriter, r *http.Request) {
	var req api.CreateFolderRequest
	if !decode(w, r, &req) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.isDirLocked(req.Path) {
		writeError(w, http.StatusNotFound, "parent folder not found")
		return
	}
	p := path.Join(req.Path, req.FolderName)
	if _, ok := n.items[p]; ok {
		writeError(w, http.StatusConflict, "folder already exists")
		return
	}
	n.items[p] = api.DirectoryContent{Name: req.FolderName, Path: p, IsDirectory: true}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (n *Node) move(w http.ResponseWriter, r *http.Request, wantDir bool) {
	var req api.MoveRequest
	if !decode(w, r, &req) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	item, ok := n.items[req.OriginPath]
	if !ok || item.IsDirectory != wantDir {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s not found", req.OriginPath))
		return
	}
	if !n.isDirLocked(req.DestinationPath) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("destination %s is not a folder", req.DestinationPath))
		return
	}
	newPath := path.Join(req.DestinationPath, item.Name)
	moved := map[string]api.DirectoryContent{}
	for p, it := range n.items {
		if p == req.OriginPath || strings.HasPrefix(p, req.OriginPath+"/") {
			delete(n.items, p)
			it.Path = newPath + strings.TrimPrefix(p, req.OriginPath)
			moved[it.Path] = it
		}
	}
	for p, it := range moved {
		n.items[p] = it
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (n *Node) moveItem(w http.ResponseWriter, r *http.Request) {
	n.move(w, r, false)
}

func (n *Node) moveFolder(w http.ResponseWriter, r *http.Request) {
	n.move(w, r, true)
}

func (n *Node) removeItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if !decode(w, r, &req) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.items[req.Path]; !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	for p := range n.items {
		if p == req.Path || strings.HasPrefix(p, req.Path+"/") {
			delete(n.items, p)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (n *Node) sortedHeadersLocked(match func(api.ToolHeader) bool) []api.ToolHeader {
	ret := []api.ToolHeader{}
	for _, h := range n.headers {
		if match(h) {
			ret = append(ret, h)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ToolRouterKey < ret[j].ToolRouterKey })
	return ret
}

func (n *Node) listTools(w http.ResponseWriter, _ *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	writeJSON(w, http.StatusOK, n.sortedHeadersLocked(func(api.ToolHeader) bool { return true }))
}

func (n *Node) searchTools(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(r.URL.Query().Get("query"))
	n.mu.Lock()
	defer n.mu.Unlock()
	writeJSON(w, http.StatusOK, n.sortedHeadersLocked(func(h api.ToolHeader) bool {
		return strings.Contains(strings.ToLower(h.Name), query) ||
			strings.Contains(strings.ToLower(h.Description), query)
	}))
}

func (n *Node) getTool(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("tool_name")
	n.mu.Lock()
	defer n.mu.Unlock()
	tool, ok := n.tools[key]
	if !ok {
		writeError(w, http.StatusNotFound, "tool not found")
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (n *Node) addTool(w http.ResponseWriter, r *http.Request) {
	var tool api.Tool
	if !decode(w, r, &tool) {
		return
	}
	key := "local:::" + strings.ToLower(tool.Type) + ":::" + uuid.NewString()
	n.AddTool(api.ToolHeader{ToolRouterKey: key, ToolType: tool.Type, Enabled: true}, tool)
	writeJSON(w, http.StatusOK, tool)
}

func (n *Node) setTool(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("tool_name")
	var tool api.Tool
	if !decode(w, r, &tool) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.tools[key]; !ok {
		writeError(w, http.StatusNotFound, "tool not found")
		return
	}
	n.tools[key] = tool
	writeJSON(w, http.StatusOK, tool)
}

func (n *Node) sortedPromptsLocked(match func(api.Prompt) bool) []api.Prompt {
	ret := []api.Prompt{}
	for _, p := range n.prompts {
		if match(p) {
			ret = append(ret, p)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

func (n *Node) listPrompts(w http.ResponseWriter, _ *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	writeJSON(w, http.StatusOK, n.sortedPromptsLocked(func(api.Prompt) bool { return true }))
}

func (n *Node) searchPrompts(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(r.URL.Query().Get("query"))
	n.mu.Lock()
	defer n.mu.Unlock()
	writeJSON(w, http.StatusOK, n.sortedPromptsLocked(func(p api.Prompt) bool {
		return strings.Contains(strings.ToLower(p.Name), query) ||
			strings.Contains(strings.ToLower(p.Prompt), query)
	}))
}

func (n *Node) addPrompt(w http.ResponseWriter, r *http.Request) {
	var p api.Prompt
	if !decode(w, r, &p) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.prompts[p.Name]; ok {
		writeError(w, http.StatusConflict, "prompt already exists")
		return
	}
	p.RowID = int64(len(n.prompts) + 1)
	n.prompts[p.Name] = p
	writeJSON(w, http.StatusOK, p)
}

func (n *Node) updatePrompt(w http.ResponseWriter, r *http.Request) {
	var p api.Prompt
	if !decode(w, r, &p) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	existing, ok := n.prompts[p.Name]
	if !ok {
		writeError(w, http.StatusNotFound, "prompt not found")
		return
	}
	p.RowID = existing.RowID
	n.prompts[p.Name] = p
	writeJSON(w, http.StatusOK, p)
}

func (n *Node) deletePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"prompt_name"`
	}
	if !decode(w, r, &req) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.prompts[req.Name]; !ok {
		writeError(w, http.StatusNotFound, "prompt not found")
		return
	}
	delete(n.prompts, req.Name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
