// Package teamroom provides a client for the teamroom chat API.
package teamroom

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// UserHeader identifies the human a request acts for.
const UserHeader = "X-Teamroom-User"

// Client is a teamroom API client.
type Client struct {
	BaseURL    string
	ConfigDir  string
	UserID     string
	HTTPClient *http.Client
	// StreamClient is used for Tail; it has no overall timeout.
	StreamClient *http.Client
}

// Config holds the locally saved identity.
type Config struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("teamroom error %d: %s", e.Status, e.Message)
}

// NewClient creates a new client. TEAMROOM_USER overrides the saved identity.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	configDir := os.Getenv("TEAMROOM_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".teamroom")
	}

	c := &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ConfigDir:    configDir,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		StreamClient: &http.Client{},
	}

	_ = c.LoadConfig()
	if id := os.Getenv("TEAMROOM_USER"); id != "" {
		c.UserID = id
	}
	return c
}

// LoadConfig loads the saved identity from disk.
func (c *Client) LoadConfig() error {
	data, err := os.ReadFile(filepath.Join(c.ConfigDir, "user.json"))
	if err != nil {
		return err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return err
	}
	c.UserID = config.ID
	return nil
}

// SaveConfig saves the identity to disk.
func (c *Client) SaveConfig(name string) error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}
	data, _ := json.MarshalIndent(Config{ID: c.UserID, Name: name}, "", "  ")
	return os.WriteFile(filepath.Join(c.ConfigDir, "user.json"), data, 0600)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserID != "" {
		req.Header.Set(UserHeader, c.UserID)
	}
	return req, nil
}

func readError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)
	var errResp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(respBody, &errResp)
	return &APIError{Status: resp.StatusCode, Message: errResp.Error}
}

// do performs a JSON request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// User is a registered human.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	JoinedAt string `json:"joined_at"`
}

// Register registers a user (or re-resolves an existing email) and saves the
// identity for later commands.
func (c *Client) Register(ctx context.Context, name, email string) (*User, error) {
	var u User
	req := map[string]string{"name": name, "email": email}
	if err := c.do(ctx, http.MethodPost, "/users", req, &u); err != nil {
		return nil, err
	}
	c.UserID = u.ID
	if err := c.SaveConfig(u.Name); err != nil {
		return nil, err
	}
	return &u, nil
}

// Health returns the raw health document.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Degraded health still carries a useful body.
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Persona is a synthetic participant profile.
type Persona struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Role           string   `json:"role"`
	Specialization string   `json:"specialization"`
	Personality    string   `json:"personality"`
	SkillTier      string   `json:"skill_tier"`
	Rooms          []string `json:"rooms"`
}

// Personas lists the persona catalog.
func (c *Client) Personas(ctx context.Context) ([]Persona, error) {
	var resp struct {
		Personas []Persona `json:"personas"`
	}
	if err := c.do(ctx, http.MethodGet, "/personas", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Personas, nil
}

// Room represents room metadata.
type Room struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	MessageCount int64  `json:"message_count"`
	LastActive   string `json:"last_active"`
}

// Project is a project record.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// CreateProject creates a project and returns it with its rooms.
func (c *Client) CreateProject(ctx context.Context, name, description string) (*Project, []Room, error) {
	var resp struct {
		Project Project `json:"project"`
		Rooms   []Room  `json:"rooms"`
	}
	req := map[string]string{"name": name, "description": description}
	if err := c.do(ctx, http.MethodPost, "/projects", req, &resp); err != nil {
		return nil, nil, err
	}
	return &resp.Project, resp.Rooms, nil
}

// Rooms lists a project's rooms.
func (c *Client) Rooms(ctx context.Context, projectID string) ([]Room, error) {
	var resp struct {
		Rooms []Room `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects/"+projectID+"/rooms", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// Team returns a project's team, most senior first.
func (c *Client) Team(ctx context.Context, projectID string) ([]Persona, error) {
	var resp struct {
		Team []Persona `json:"team"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects/"+projectID+"/team", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Team, nil
}

// SetTeam replaces a project's team. No persona IDs clears it.
func (c *Client) SetTeam(ctx context.Context, projectID string, personaIDs ...string) ([]Persona, error) {
	var resp struct {
		Team []Persona `json:"team"`
	}
	if personaIDs == nil {
		personaIDs = []string{}
	}
	req := map[string][]string{"persona_ids": personaIDs}
	if err := c.do(ctx, http.MethodPost, "/projects/"+projectID+"/team", req, &resp); err != nil {
		return nil, err
	}
	return resp.Team, nil
}

// Join adds the current user to a room.
func (c *Client) Join(ctx context.Context, roomID string) error {
	if c.UserID == "" {
		return errors.New("no user identity; register first")
	}
	return c.do(ctx, http.MethodPost, "/rooms/"+roomID+"/participants", map[string]string{"user_id": c.UserID}, nil)
}

// Message is a chat message with its resolved sender.
type Message struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	RoomID     string    `json:"room_id"`
	SenderKind string    `json:"sender_kind"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	SenderInfo string    `json:"sender_info,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessagesResponse is a page of room history, oldest first.
type MessagesResponse struct {
	Room     Room      `json:"room"`
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// GetMessages reads a page of history strictly before the given seq
// (0 for the newest).
func (c *Client) GetMessages(ctx context.Context, roomID string, limit int, before int64) (*MessagesResponse, error) {
	path := fmt.Sprintf("/rooms/%s/messages?limit=%d", roomID, limit)
	if before > 0 {
		path += fmt.Sprintf("&before=%d", before)
	}

	var resp MessagesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PostMessage posts a message to a room as the current user.
func (c *Client) PostMessage(ctx context.Context, roomID, content string) (*Message, error) {
	if c.UserID == "" {
		return nil, errors.New("no user identity; register first")
	}
	var msg Message
	if err := c.do(ctx, http.MethodPost, "/rooms/"+roomID+"/messages", map[string]string{"content": content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Tail streams a room's new messages to fn until ctx ends, the server closes
// the stream, or fn returns an error.
func (c *Client) Tail(ctx context.Context, roomID string, fn func(Message) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/rooms/"+roomID+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.StreamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var msg Message
			err := json.Unmarshal([]byte(data.String()), &msg)
			data.Reset()
			if err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			if err := fn(msg); err != nil {
				return err
			}
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}
