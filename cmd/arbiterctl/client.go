package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type client struct {
	base  string
	http  *http.Client
	token string
}

func newClient(base string) *client {
	return &client{
		base: base,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *client) do(method, path string, body interface{}) (json.RawMessage, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s (code %d)", env.Message, env.Code)
	}
	return env.Data, nil
}

func (c *client) login(username, password string) error {
	data, err := c.do(http.MethodPost, "/api/v1/login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return err
	}
	var out struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	c.token = out.Token
	fmt.Printf("logged in as %s (%s)\n", username, out.Role)
	return nil
}

func (c *client) clock(action string) error {
	var data json.RawMessage
	var err error
	switch action {
	case "show":
		data, err = c.do(http.MethodGet, "/api/v1/clock", nil)
	case "start", "pause", "unpause":
		data, err = c.do(http.MethodPost, "/api/v1/admin/clock/"+action, nil)
	default:
		return fmt.Errorf("unknown clock action %q", action)
	}
	if err != nil {
		return err
	}
	return printJSON(data)
}

func (c *client) announce(message string) error {
	_, err := c.do(http.MethodPost, "/api/v1/admin/announcements", map[string]string{
		"message": message,
	})
	if err == nil {
		fmt.Println("announced")
	}
	return err
}

func (c *client) kick(username string) error {
	data, err := c.do(http.MethodPost, "/api/v1/admin/kick/"+username, nil)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func (c *client) registry() error {
	data, err := c.do(http.MethodGet, "/api/v1/admin/registry", nil)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func (c *client) leaderboard() error {
	data, err := c.do(http.MethodGet, "/api/v1/leaderboard", nil)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func (c *client) submissionStatus(id string) error {
	data, err := c.do(http.MethodGet, "/api/v1/submissions/"+id+"/status", nil)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func (c *client) cancel(id string) error {
	data, err := c.do(http.MethodDelete, "/api/v1/submissions/"+id, nil)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func printJSON(data json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}
