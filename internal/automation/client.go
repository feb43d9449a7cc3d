// Package automation calls the webhooks of the external workflow system that
// owns the WhatsApp AI agent. Calls are attempted once; the caller decides
// what a failure means for its local state.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxResponseBytes = 4 << 20 // QR images come back inline
	qrDataPrefix     = "data:image/png;base64,"
	humanAgentSender = "human_agent"
)

type Config struct {
	BaseURL    string
	PausePath  string
	DeletePath string
	SendPath   string
	QRPath     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("automation base URL is empty")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger, now: time.Now}, nil
}

// Response is whatever the workflow answered. Bodies are optional and only
// sometimes JSON.
type Response struct {
	Status int
	Raw    string
	JSON   any
}

type AttendanceRequest struct {
	SessionID  string
	ClientName string
	Phone      string
	Paused     bool
}

type attendancePayload struct {
	SessionID  string `json:"session_id"`
	ClientName string `json:"cliente_nome"`
	Phone      string `json:"telefone"`
	Attendance string `json:"atendimento"`
	Action     string `json:"action"`
	Timestamp  string `json:"timestamp"`
}

// SetAttendance hands the conversation to a human (Paused) or back to the AI.
func (c *Client) SetAttendance(ctx context.Context, req AttendanceRequest) (*Response, error) {
	if req.SessionID == "" {
		return nil, newError(ErrorInvalidRequest, "attendance", 0, errors.New("session id is empty"))
	}
	payload := attendancePayload{
		SessionID:  req.SessionID,
		ClientName: req.ClientName,
		Phone:      req.Phone,
		Attendance: "ia",
		Action:     "resume",
		Timestamp:  c.timestamp(),
	}
	if req.Paused {
		payload.Attendance = "human"
		payload.Action = "pause"
	}
	return c.post(ctx, "attendance", c.cfg.PausePath, payload)
}

type DeleteRequest struct {
	SessionID  string
	ClientName string
	Phone      string
}

type deletePayload struct {
	SessionID  string `json:"session_id"`
	ClientName string `json:"cliente_nome"`
	Phone      string `json:"telefone"`
	Action     string `json:"action"`
}

func (c *Client) DeleteLead(ctx context.Context, req DeleteRequest) error {
	if req.SessionID == "" {
		return newError(ErrorInvalidRequest, "delete", 0, errors.New("session id is empty"))
	}
	_, err := c.post(ctx, "delete", c.cfg.DeletePath, deletePayload{
		SessionID:  req.SessionID,
		ClientName: req.ClientName,
		Phone:      req.Phone,
		Action:     "delete",
	})
	return err
}

type SendRequest struct {
	SessionID  string
	ClientName string
	Message    string
}

type sendPayload struct {
	SessionID  string `json:"session_id"`
	ClientName string `json:"cliente_nome"`
	Message    string `json:"message"`
	Sender     string `json:"sender"`
	Timestamp  string `json:"timestamp"`
}

// SendMessage asks the workflow to deliver an operator message on WhatsApp.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*Response, error) {
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		return nil, newError(ErrorInvalidRequest, "send", 0, errors.New("session id and message are required"))
	}
	return c.post(ctx, "send", c.cfg.SendPath, sendPayload{
		SessionID:  req.SessionID,
		ClientName: req.ClientName,
		Message:    req.Message,
		Sender:     humanAgentSender,
		Timestamp:  c.timestamp(),
	})
}

// GenerateQR requests a pairing QR code for a WhatsApp instance and returns
// it as a data URL.
func (c *Client) GenerateQR(ctx context.Context, instance string) (string, error) {
	if instance == "" {
		return "", newError(ErrorInvalidRequest, "qr", 0, errors.New("instance is empty"))
	}
	resp, err := c.post(ctx, "qr", c.cfg.QRPath, map[string]string{
		"action":   "generate_qr",
		"instance": instance,
	})
	if err != nil {
		return "", err
	}

	switch data := resp.JSON.(type) {
	case map[string]any:
		if qr, ok := data["qrcode"].(string); ok && qr != "" {
			return qr, nil
		}
		if b64, ok := data["base64"].(string); ok && b64 != "" {
			return qrDataPrefix + b64, nil
		}
	case string:
		if data != "" {
			if strings.HasPrefix(data, "data:") {
				return data, nil
			}
			return qrDataPrefix + data, nil
		}
	}
	return "", newError(ErrorEmptyResponse, "qr", resp.Status, fmt.Errorf("no QR code in response"))
}

func (c *Client) post(ctx context.Context, action, path string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(ErrorInvalidRequest, action, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, newError(ErrorInvalidRequest, action, 0, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	c.logger.Debug("calling automation webhook", "action", action, "request_id", requestID)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, newError(ErrorTransport, action, 0, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, newError(ErrorTransport, action, httpResp.StatusCode, err)
	}

	resp := &Response{Status: httpResp.StatusCode, Raw: string(raw)}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
		var parsed any
		if err := json.Unmarshal(trimmed, &parsed); err == nil {
			resp.JSON = parsed
		} else {
			c.logger.Debug("automation response is not JSON", "action", action, "request_id", requestID)
		}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return resp, newError(ErrorUpstreamStatus, action, httpResp.StatusCode, nil)
	}
	return resp, nil
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
