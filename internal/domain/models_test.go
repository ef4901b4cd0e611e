package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEventTypeString(t *testing.T) {
	cases := []struct {
		event EventType
		want  string
	}{
		{EventNone, "none"},
		{EventJoined, "joined"},
		{EventLeft, "left"},
		{EventRemoved, "removed"},
		{EventRenamed, "renamed"},
		{EventModerated, "moderated"},
		{EventUnknown, "unknown"},
		{EventType(99), "unknown"},
	}

	for _, c := range cases {
		if got := c.event.String(); got != c.want {
			t.Errorf("String() для %d: ожидалось %q, получено %q", int(c.event), c.want, got)
		}
	}
}

func TestChatRecordHasMessage(t *testing.T) {
	t.Run("Уведомление без сообщения", func(t *testing.T) {
		r := ChatRecord{Actor: "김철수", Event: EventJoined}
		if r.HasMessage() {
			t.Error("Уведомление без текста не должно считаться сообщением")
		}
	})

	t.Run("Пустая строка считается присутствующим текстом", func(t *testing.T) {
		empty := ""
		r := ChatRecord{Actor: "채팅방 관리자", Event: EventModerated, Message: &empty}
		if !r.HasMessage() {
			t.Error("Присутствующий пустой текст отличается от отсутствующего")
		}
	})
}

func TestChatRecordClock(t *testing.T) {
	r := ChatRecord{Timestamp: time.Date(2023, 8, 10, 21, 5, 0, 0, time.UTC)}
	if got := r.Clock(); got != "21:05" {
		t.Errorf("Ожидалось '21:05', получено %q", got)
	}
}

func TestDatasetIsActive(t *testing.T) {
	ds := Dataset{ActiveUsers: []string{"김철수", "이영희"}}

	if !ds.IsActive("김철수") {
		t.Error("Участник из набора должен быть активным")
	}
	if ds.IsActive("방장봇") {
		t.Error("Участник вне набора не должен быть активным")
	}
}

func TestEventTypeJSON(t *testing.T) {
	msg := "안녕하세요"
	r := ChatRecord{
		Timestamp: time.Date(2023, 8, 10, 21, 5, 0, 0, time.UTC),
		Actor:     "김철수",
		Event:     EventNone,
		Message:   &msg,
	}

	data, err := json.Marshal(&r)
	if err != nil {
		t.Fatalf("Неожиданная ошибка: %v", err)
	}
	if !strings.Contains(string(data), `"event":"none"`) {
		t.Errorf("Тип события должен сериализоваться текстовой меткой, получено %s", data)
	}

	// Уведомление без сообщения не несет поля message.
	r2 := ChatRecord{Actor: "김철수", Event: EventJoined, EventText: EventTextJoined}
	data2, err := json.Marshal(&r2)
	if err != nil {
		t.Fatalf("Неожиданная ошибка: %v", err)
	}
	if strings.Contains(string(data2), `"message"`) {
		t.Errorf("Отсутствующее сообщение не должно сериализоваться, получено %s", data2)
	}
}
