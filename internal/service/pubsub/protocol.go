package pubsub

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Subprotocol 是 Web PubSub 的 JSON 子协议名。
const Subprotocol = "json.webpubsub.azure.v1"

// outboundFrame 是客户端发往服务端的消息。
type outboundFrame struct {
	Type     string   `json:"type"`
	Group    string   `json:"group,omitempty"`
	AckID    uint64   `json:"ackId,omitempty"`
	NoEcho   bool     `json:"noEcho,omitempty"`
	DataType DataType `json:"dataType,omitempty"`
	Data     any      `json:"data,omitempty"`
}

// inboundFrame 是服务端下发的消息，按 type 区分语义。
type inboundFrame struct {
	Type         string          `json:"type"`
	Event        string          `json:"event,omitempty"`
	AckID        uint64          `json:"ackId,omitempty"`
	Success      bool            `json:"success,omitempty"`
	Error        *ackErrorFrame  `json:"error,omitempty"`
	From         string          `json:"from,omitempty"`
	FromUserID   string          `json:"fromUserId,omitempty"`
	Group        string          `json:"group,omitempty"`
	DataType     DataType        `json:"dataType,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	UserID       string          `json:"userId,omitempty"`
	ConnectionID string          `json:"connectionId,omitempty"`
	Message      string          `json:"message,omitempty"`
}

type ackErrorFrame struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// encodePayload 按数据类型准备发送字段。
func encodePayload(data any, dataType DataType) (any, error) {
	switch dataType {
	case DataTypeText:
		switch v := data.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		default:
			return fmt.Sprint(v), nil
		}
	case DataTypeJSON:
		return data, nil
	case DataTypeBinary:
		raw, ok := data.([]byte)
		if !ok {
			return nil, fmt.Errorf("binary payload must be []byte, got %T", data)
		}
		return base64.StdEncoding.EncodeToString(raw), nil
	default:
		return nil, fmt.Errorf("unsupported data type %q", dataType)
	}
}

// decodePayload 将原始 data 字段还原为 Go 值。
func decodePayload(raw json.RawMessage, dataType DataType) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	switch dataType {
	case DataTypeText:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("decode text payload: %w", err)
		}
		return text, nil
	case DataTypeBinary, "protobuf":
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("decode binary payload: %w", err)
		}
		return base64.StdEncoding.DecodeString(encoded)
	default:
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("decode json payload: %w", err)
		}
		return value, nil
	}
}
