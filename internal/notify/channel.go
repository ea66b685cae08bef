package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"doc-tracker/pkg/config"
)

const (
	ChannelEmail = "email"
	ChannelChat  = "chat"
	ChannelCRM   = "crm"
)

// Channel 把一条任务发送到外部系统
type Channel interface {
	Name() string
	Send(ctx context.Context, task *Task) error
}

// StatusError 外部系统返回了非 2xx
type StatusError struct {
	Channel string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded with status %d: %s", e.Channel, e.Code, e.Body)
}

func postJSON(ctx context.Context, client *http.Client, channel, url string, headers map[string]string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Channel: channel, Code: resp.StatusCode, Body: string(snippet)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// EmailChannel 通过邮件服务商的 HTTP 接口发信
type EmailChannel struct {
	baseURL string
	apiKey  string
	from    string
	client  *http.Client
}

func NewEmailChannel(cfg config.EmailConfig, client *http.Client) *EmailChannel {
	return &EmailChannel{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, from: cfg.From, client: client}
}

func (c *EmailChannel) Name() string { return ChannelEmail }

type emailEnvelope struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (c *EmailChannel) Send(ctx context.Context, task *Task) error {
	var msg EmailMessage
	if err := json.Unmarshal(task.Payload, &msg); err != nil {
		return fmt.Errorf("invalid email payload: %w", err)
	}
	body, err := json.Marshal(emailEnvelope{From: c.from, To: task.Target, Subject: msg.Subject, Text: msg.Text})
	if err != nil {
		return err
	}
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	return postJSON(ctx, c.client, ChannelEmail, c.baseURL, headers, body)
}

// ChatChannel 把消息推送到所有者配置的 webhook
type ChatChannel struct {
	client *http.Client
}

func NewChatChannel(client *http.Client) *ChatChannel {
	return &ChatChannel{client: client}
}

func (c *ChatChannel) Name() string { return ChannelChat }

func (c *ChatChannel) Send(ctx context.Context, task *Task) error {
	if task.Target == "" {
		return fmt.Errorf("chat task %s has no webhook url", task.ID)
	}
	return postJSON(ctx, c.client, ChannelChat, task.Target, nil, task.Payload)
}

// CRMChannel 把参与事件同步到 CRM
type CRMChannel struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewCRMChannel(cfg config.CRMConfig, client *http.Client) *CRMChannel {
	return &CRMChannel{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, client: client}
}

func (c *CRMChannel) Name() string { return ChannelCRM }

func (c *CRMChannel) Send(ctx context.Context, task *Task) error {
	headers := map[string]string{
		"X-CRM-Account":   task.Target,
		"Idempotency-Key": task.ID,
	}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	return postJSON(ctx, c.client, ChannelCRM, c.baseURL, headers, task.Payload)
}
