package bot

import "sync"

// chatTasks — задачи одного Telegram-чата: активная задача разбора и
// последняя завершенная, по которой можно строить повторные отчеты.
type chatTasks struct {
	active    string
	completed string
}

// TaskStore — потокобезопасное in-memory хранилище сопоставления
// идентификатора чата Telegram с задачами на бэкенд-сервере.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[int64]*chatTasks
}

// NewTaskStore создает новый экземпляр TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[int64]*chatTasks),
	}
}

// SetActive сохраняет активную задачу чата.
// Существующая активная задача перезаписывается.
func (s *TaskStore) SetActive(chatID int64, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(chatID).active = taskID
}

// Active извлекает активную задачу чата.
func (s *TaskStore) Active(chatID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[chatID]
	if !ok || t.active == "" {
		return "", false
	}
	return t.active, true
}

// Complete переводит активную задачу чата в завершенные: по ней можно
// запрашивать отчеты командами без повторной загрузки файла.
func (s *TaskStore) Complete(chatID int64, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.entry(chatID)
	if t.active == taskID {
		t.active = ""
	}
	t.completed = taskID
}

// Completed извлекает последнюю завершенную задачу чата.
func (s *TaskStore) Completed(chatID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[chatID]
	if !ok || t.completed == "" {
		return "", false
	}
	return t.completed, true
}

// ClearActive снимает активную задачу чата (например, при ошибке разбора).
func (s *TaskStore) ClearActive(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[chatID]; ok {
		t.active = ""
	}
}

// entry возвращает запись чата, создавая ее при необходимости.
// Вызывающий должен держать блокировку записи.
func (s *TaskStore) entry(chatID int64) *chatTasks {
	t, ok := s.tasks[chatID]
	if !ok {
		t = &chatTasks{}
		s.tasks[chatID] = t
	}
	return t
}
