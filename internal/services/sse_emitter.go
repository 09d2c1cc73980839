package services

import (
	"context"

	"github.com/yungbote/studypilot-backend/internal/sse"
	"github.com/yungbote/studypilot-backend/internal/ssedata"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg sse.SSEMessage)
}

type HubEmitter struct{ Hub *sse.SSEHub }

func (e *HubEmitter) Emit(ctx context.Context, msg sse.SSEMessage) {
	e.Hub.Broadcast(msg)
}

type RedisEmitter struct{ Bus SSEBus }

func (e *RedisEmitter) Emit(ctx context.Context, msg sse.SSEMessage) {
	_ = e.Bus.Publish(ctx, msg)
}

// CtxBufferedEmitter parks messages in the request's ssedata buffer when one
// is present, so the handler flushes them only after its unit of work has
// committed. Contexts without a buffer (the worker, startup) pass through.
type CtxBufferedEmitter struct{ Inner SSEEmitter }

func (e *CtxBufferedEmitter) Emit(ctx context.Context, msg sse.SSEMessage) {
	if ssd := ssedata.GetSSEData(ctx); ssd != nil {
		ssd.AppendMessage(msg)
		return
	}
	e.Inner.Emit(ctx, msg)
}
