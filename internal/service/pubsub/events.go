// Package pubsub implements a realtime client for the Web PubSub JSON subprotocol.
package pubsub

import "context"

// DataType 描述消息负载的编码方式。
type DataType string

const (
	DataTypeText   DataType = "text"
	DataTypeJSON   DataType = "json"
	DataTypeBinary DataType = "binary"
)

// EventType 是客户端生命周期与消息事件。
type EventType string

const (
	EventConnected         EventType = "connected"
	EventDisconnected      EventType = "disconnected"
	EventStopped           EventType = "stopped"
	EventGroupMessage      EventType = "group-message"
	EventServerMessage     EventType = "server-message"
	EventRejoinGroupFailed EventType = "rejoin-group-failed"
)

// Event 是客户端投递给监听者的事件。
// Data 对 text 为 string，对 json 为解码后的任意值，对 binary 为 []byte。
type Event struct {
	Type         EventType
	Group        string
	FromUserID   string
	DataType     DataType
	Data         any
	UserID       string
	ConnectionID string
	Message      string
	Err          error
}

// Client is the connection client used by the session coordinator.
type Client interface {
	Start(ctx context.Context) error
	Stop() error
	JoinGroup(ctx context.Context, group string) error
	LeaveGroup(ctx context.Context, group string) error
	SendToGroup(ctx context.Context, group string, data any, dataType DataType) error
	OnEvent(fn func(Event))
}
