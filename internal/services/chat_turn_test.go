package services

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/types"
)

func TestDeriveChatTitle(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "empty",
			content: "",
			want:    types.DefaultChatTitle,
		},
		{
			name:    "whitespace_only",
			content: "  \n\t ",
			want:    types.DefaultChatTitle,
		},
		{
			name:    "collapses_whitespace",
			content: "explain\n\nthe  Krebs   cycle",
			want:    "explain the Krebs cycle",
		},
		{
			name:    "fifty_runes_kept",
			content: strings.Repeat("a", 50),
			want:    strings.Repeat("a", 50),
		},
		{
			name:    "long_content_truncated",
			content: strings.Repeat("a", 80),
			want:    strings.Repeat("a", 50) + "…",
		},
		{
			name:    "truncation_counts_runes",
			content: strings.Repeat("é", 60),
			want:    strings.Repeat("é", 50) + "…",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := deriveChatTitle(tc.content); got != tc.want {
				t.Fatalf("deriveChatTitle(%q)=%q, want %q", tc.content, got, tc.want)
			}
		})
	}
}

func TestResolveChatCreatesOnSentinel(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	chats := &fakeChatRepo{}
	ts := &chatTurnService{log: log, chatRepo: chats}

	in := ChatTurnInput{ProjectID: uuid.New(), UserID: uuid.New(), ChatID: NewChatSentinel}
	chat, created, err := ts.resolveChat(dbctx.Context{}, in)
	if err != nil {
		t.Fatalf("resolveChat: %v", err)
	}
	if !created {
		t.Fatalf("created: want=true")
	}
	if chat.Title != types.DefaultChatTitle {
		t.Fatalf("title: want=%q got=%q", types.DefaultChatTitle, chat.Title)
	}
	if chat.ProjectID != in.ProjectID || chat.UserID != in.UserID {
		t.Fatalf("ownership: got project=%s user=%s", chat.ProjectID, chat.UserID)
	}
}

func TestResolveChatLoadsExisting(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	existing := &types.Chat{ID: uuid.New(), Title: "Mitosis questions"}
	chats := &fakeChatRepo{chat: existing}
	ts := &chatTurnService{log: log, chatRepo: chats}

	chat, created, err := ts.resolveChat(dbctx.Context{}, ChatTurnInput{ChatID: existing.ID.String()})
	if err != nil {
		t.Fatalf("resolveChat: %v", err)
	}
	if created {
		t.Fatalf("created: want=false")
	}
	if chat != existing {
		t.Fatalf("chat: want the repo's row back")
	}
}

func TestResolveChatRejectsMalformedID(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	ts := &chatTurnService{log: log, chatRepo: &fakeChatRepo{}}

	_, _, err = ts.resolveChat(dbctx.Context{}, ChatTurnInput{ChatID: "not-a-uuid"})
	if err == nil {
		t.Fatalf("resolveChat: expected error for malformed id")
	}
}
