package chat

import "sync"

// Registry — реестр живых подключений: комната → множество сессий.
// Единственная разделяемая изменяемая структура ядра чата, поэтому
// все операции защищены RWMutex. Ключ комнаты существует только пока
// в ней есть хотя бы одна сессия.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{}
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[*Session]struct{})}
}

// Register добавляет сессию в комнату. Первая сессия создаёт комнату.
func (r *Registry) Register(roomID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.rooms[roomID]
	if set == nil {
		set = make(map[*Session]struct{})
		r.rooms[roomID] = set
	}
	set[s] = struct{}{}
}

// Deregister удаляет сессию из комнаты. Последняя сессия удаляет комнату.
// Повторный вызов для той же сессии — no-op.
func (r *Registry) Deregister(roomID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(r.rooms, roomID)
	}
}

// SessionsFor возвращает снимок текущих сессий комнаты.
// Вызывающий получает копию: живую карту наружу не отдаём,
// иначе итерация рассылки гонялась бы с register/deregister.
func (r *Registry) SessionsFor(roomID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.rooms[roomID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Rooms возвращает список комнат, в которых сейчас есть подключения.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		out = append(out, name)
	}
	return out
}
