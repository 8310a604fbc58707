package pubsub

import "context"

const (
	// LogEvent 携带一次运行中的一条进度记录
	LogEvent EventType = "log"
	// FinishedEvent 标记运行结束，订阅者收到后可以停止读取
	FinishedEvent EventType = "finished"
)

// Subscriber 提供在 context 结束时关闭的事件通道
type Subscriber[T any] interface {
	Subscribe(context.Context) <-chan Event[T]
}

type (
	// EventType 标识事件的类型
	EventType string

	// Event 是一次发布的载荷
	Event[T any] struct {
		Type    EventType
		Payload T
	}

	// Publisher 将事件发布给当前所有订阅者
	Publisher[T any] interface {
		Publish(EventType, T)
	}
)
