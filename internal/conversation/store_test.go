package conversation

import (
	"reflect"
	"strings"
	"sync"
	"testing"
)

func TestNewStore(t *testing.T) {
	s := NewStore()

	if s == nil {
		t.Fatal("NewStore() returned nil")
	}
	if s.Len() != 0 {
		t.Errorf("new store should be empty, got %d messages", s.Len())
	}
	if got := s.List(); len(got) != 0 {
		t.Errorf("List() on empty store = %v, want empty", got)
	}
}

func TestAppendMaintainsOrder(t *testing.T) {
	s := NewStore()

	first := NewUserMessage("first")
	second := NewAssistantMessage("first", "https://x/img.png")
	third := NewUserMessage("third")

	s.Append(first)
	s.Append(second)
	s.Append(third)

	got := s.List()
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i, want := range []Message{first, second, third} {
		if got[i].ID != want.ID {
			t.Errorf("message[%d].ID = %s, want %s", i, got[i].ID, want.ID)
		}
	}
}

func TestListIsIdempotent(t *testing.T) {
	s := NewStore()
	s.Append(NewUserMessage("Hello"))
	s.Append(NewAssistantMessage("Hello", ""))

	a := s.List()
	b := s.List()
	if !reflect.DeepEqual(a, b) {
		t.Errorf("List() not stable:\n%v\n%v", a, b)
	}
}

func TestListReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Append(NewUserMessage("original"))

	got := s.List()
	got[0].Text = "tampered"

	if s.List()[0].Text != "original" {
		t.Error("modifying List() result changed the store")
	}
}

func TestReset(t *testing.T) {
	s := NewStore()
	s.Append(NewUserMessage("one"))
	s.Append(NewUserMessage("two"))

	s.Reset()

	if s.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", s.Len())
	}

	s.Append(NewUserMessage("three"))
	if s.Len() != 1 {
		t.Errorf("Len() after Reset+Append = %d, want 1", s.Len())
	}
}

func TestConcurrentReadsDuringAppend(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s.Append(NewUserMessage("msg"))
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.List()
				_ = s.Len()
			}
		}()
	}

	wg.Wait()
	if s.Len() != 100 {
		t.Errorf("Len() = %d, want 100", s.Len())
	}
}

func TestNewUserMessage(t *testing.T) {
	m := NewUserMessage("  Hello  ")

	if m.Author != AuthorUser || !m.IsUser() {
		t.Errorf("Author = %q, want %q", m.Author, AuthorUser)
	}
	if m.Text != "  Hello  " {
		t.Errorf("Text = %q, want raw input", m.Text)
	}
	if m.HasImage() {
		t.Error("user message should not carry an image")
	}
	if m.ID == "" {
		t.Error("ID is empty")
	}
	if m.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestNewAssistantMessage(t *testing.T) {
	m := NewAssistantMessage("Hello", "https://x/img.png")

	if m.Author != AuthorAssistant || m.IsUser() {
		t.Errorf("Author = %q, want %q", m.Author, AuthorAssistant)
	}
	if m.Text != `Sign language for: "Hello"` {
		t.Errorf("Text = %q", m.Text)
	}
	if !strings.Contains(m.Text, "Hello") {
		t.Errorf("Text %q does not contain the input", m.Text)
	}
	if m.ImageURL != "https://x/img.png" {
		t.Errorf("ImageURL = %q", m.ImageURL)
	}

	empty := NewAssistantMessage("Hello", "")
	if empty.HasImage() {
		t.Error("empty image reference reported as present")
	}
}

func TestMessageIDsSortByCreation(t *testing.T) {
	var prev string
	for i := 0; i < 500; i++ {
		id := NewUserMessage("x").ID
		if prev != "" && id <= prev {
			t.Fatalf("id %s generated after %s does not sort after it", id, prev)
		}
		prev = id
	}
}
