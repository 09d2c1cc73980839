package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/types"
)

func TestReverseMessages(t *testing.T) {
	a := &types.Message{ID: uuid.New()}
	b := &types.Message{ID: uuid.New()}
	c := &types.Message{ID: uuid.New()}

	out := reverseMessages([]*types.Message{c, b, a})
	if out[0] != a || out[1] != b || out[2] != c {
		t.Fatalf("order mismatch: got=[%s %s %s]", out[0].ID, out[1].ID, out[2].ID)
	}

	if got := reverseMessages(nil); len(got) != 0 {
		t.Fatalf("nil input: want empty got=%d", len(got))
	}
}

func TestListMessagesPaging(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	// Six messages newest-first, the way the repo returns them.
	stored := make([]*types.Message, 6)
	for i := range stored {
		stored[i] = &types.Message{ID: uuid.New(), Content: "m"}
	}

	chats := &fakeChatRepo{chat: &types.Chat{ID: uuid.New()}}
	messages := &fakeMessageRepo{newestFirst: stored}
	svc := &chatService{log: log, chatRepo: chats, messageRepo: messages}

	page, err := svc.ListMessages(context.Background(), uuid.New(), uuid.New(), uuid.New(), nil, 4)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}

	if messages.lastLimit != 5 {
		t.Fatalf("repo limit: want=5 got=%d", messages.lastLimit)
	}
	if !page.HasMore {
		t.Fatalf("has more: want=true")
	}
	if len(page.Messages) != 4 {
		t.Fatalf("page size: want=4 got=%d", len(page.Messages))
	}
	// Oldest of the page first, and the cursor points at it.
	if page.Messages[0] != stored[3] {
		t.Fatalf("page order: want oldest-first")
	}
	if page.NextCursor == nil || *page.NextCursor != stored[3].ID {
		t.Fatalf("next cursor: want=%s got=%v", stored[3].ID, page.NextCursor)
	}
}

func TestListMessagesLastPage(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	stored := []*types.Message{{ID: uuid.New()}, {ID: uuid.New()}}
	chats := &fakeChatRepo{chat: &types.Chat{ID: uuid.New()}}
	messages := &fakeMessageRepo{newestFirst: stored}
	svc := &chatService{log: log, chatRepo: chats, messageRepo: messages}

	page, err := svc.ListMessages(context.Background(), uuid.New(), uuid.New(), uuid.New(), nil, 50)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if page.HasMore {
		t.Fatalf("has more: want=false")
	}
	if page.NextCursor != nil {
		t.Fatalf("next cursor: want=nil got=%v", page.NextCursor)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("page size: want=2 got=%d", len(page.Messages))
	}
}

func TestListMessagesClampsLimit(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	chats := &fakeChatRepo{chat: &types.Chat{ID: uuid.New()}}
	messages := &fakeMessageRepo{}
	svc := &chatService{log: log, chatRepo: chats, messageRepo: messages}

	if _, err := svc.ListMessages(context.Background(), uuid.New(), uuid.New(), uuid.New(), nil, 0); err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if messages.lastLimit != defaultMessagePageSize+1 {
		t.Fatalf("default limit: want=%d got=%d", defaultMessagePageSize+1, messages.lastLimit)
	}

	if _, err := svc.ListMessages(context.Background(), uuid.New(), uuid.New(), uuid.New(), nil, 10000); err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if messages.lastLimit != maxMessagePageSize+1 {
		t.Fatalf("clamped limit: want=%d got=%d", maxMessagePageSize+1, messages.lastLimit)
	}
}

type fakeChatRepo struct {
	chat   *types.Chat
	getErr error
}

func (f *fakeChatRepo) Create(_ dbctx.Context, chats []*types.Chat) ([]*types.Chat, error) {
	return chats, nil
}

func (f *fakeChatRepo) GetOwned(_ dbctx.Context, _, _, _ uuid.UUID) (*types.Chat, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.chat, nil
}

func (f *fakeChatRepo) ListByProject(_ dbctx.Context, _, _ uuid.UUID) ([]*types.Chat, error) {
	return nil, nil
}

func (f *fakeChatRepo) UpdateFields(_ dbctx.Context, _ uuid.UUID, _ map[string]interface{}) error {
	return nil
}

func (f *fakeChatRepo) RecordExchange(_ dbctx.Context, _ uuid.UUID, _ int, _ time.Time) error {
	return nil
}

func (f *fakeChatRepo) SoftDelete(_ dbctx.Context, _, _, _ uuid.UUID) error {
	return nil
}

type fakeMessageRepo struct {
	newestFirst []*types.Message
	lastLimit   int
	lastBefore  *uuid.UUID
}

func (f *fakeMessageRepo) Create(_ dbctx.Context, messages []*types.Message) ([]*types.Message, error) {
	return messages, nil
}

func (f *fakeMessageRepo) GetOwned(_ dbctx.Context, _, _, _ uuid.UUID) (*types.Message, error) {
	return nil, nil
}

func (f *fakeMessageRepo) ListRecent(_ dbctx.Context, _, _ uuid.UUID, limit int) ([]*types.Message, error) {
	if limit > len(f.newestFirst) {
		limit = len(f.newestFirst)
	}
	return f.newestFirst[:limit], nil
}

func (f *fakeMessageRepo) ListBefore(_ dbctx.Context, _, _ uuid.UUID, before *uuid.UUID, limit int) ([]*types.Message, error) {
	f.lastLimit = limit
	f.lastBefore = before
	if limit > len(f.newestFirst) {
		limit = len(f.newestFirst)
	}
	return f.newestFirst[:limit], nil
}

func (f *fakeMessageRepo) UpdateFields(_ dbctx.Context, _ uuid.UUID, _ map[string]interface{}) error {
	return nil
}

func (f *fakeMessageRepo) SoftDeleteByChatID(_ dbctx.Context, _, _ uuid.UUID) error {
	return nil
}
