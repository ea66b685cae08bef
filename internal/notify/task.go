package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Task 是队列中的一条待发送通知，每个渠道一条
type Task struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Channel    string          `json:"channel"`
	Target     string          `json:"target"` // 邮箱地址、webhook 地址或 CRM 账号
	SessionID  string          `json:"session_id,omitempty"`
	DocumentID uint            `json:"document_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

func NewTask(kind, channel, target string, payload any) (*Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", channel, err)
	}
	return &Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Channel:   channel,
		Target:    target,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EncodeTask 把任务编码为 protobuf Struct，供 Kafka 使用
func EncodeTask(task *Task) ([]byte, error) {
	s, err := taskToStruct(task)
	if err != nil {
		return nil, err
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	return data, nil
}

func DecodeTask(data []byte) (*Task, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return taskFromStruct(&s)
}

func taskToStruct(task *Task) (*structpb.Struct, error) {
	raw, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to convert task: %w", err)
	}
	return s, nil
}

func taskFromStruct(s *structpb.Struct) (*Task, error) {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	if task.ID == "" || task.Channel == "" {
		return nil, fmt.Errorf("task is missing id or channel")
	}
	return &task, nil
}
