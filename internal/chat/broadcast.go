package chat

import "log"

// Broadcaster рассылает сообщение всем сессиям комнаты.
// Доставка best-effort: ошибка записи одному получателю логируется
// и не мешает доставке остальным и не затрагивает цикл отправителя.
type Broadcaster struct {
	registry *Registry
}

// NewBroadcaster создаёт Broadcaster поверх реестра подключений.
func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast отправляет msg каждой сессии из текущего снимка комнаты.
// Сессии, подключившиеся после снимка, сообщение не получат —
// они увидят его в истории при подключении.
func (b *Broadcaster) Broadcast(roomID string, msg Message) {
	for _, s := range b.registry.SessionsFor(roomID) {
		if err := s.Send(msg); err != nil {
			log.Printf("broadcast: не удалось доставить сообщение сессии %s в комнате %s: %v", s.ID(), roomID, err)
		}
	}
}
