package ws

// controlQueue — очередь претендентов на роль контроллера. Голова очереди
// управляет игрой, остальные ждут. Порядок строго FIFO.
type controlQueue struct {
	ids []uint64
}

// add ставит клиента в очередь. Возвращает true, если клиент сразу стал
// активным контроллером, и его позицию в очереди (0 для активного).
func (q *controlQueue) add(id uint64) (active bool, position int) {
	for i, existing := range q.ids {
		if existing == id {
			return i == 0, i
		}
	}
	q.ids = append(q.ids, id)
	return len(q.ids) == 1, len(q.ids) - 1
}

// remove убирает клиента. Если ушёл активный контроллер и очередь не пуста,
// возвращается id следующего, которому передаётся управление.
func (q *controlQueue) remove(id uint64) (promoted uint64, ok bool) {
	for i, existing := range q.ids {
		if existing != id {
			continue
		}
		wasActive := i == 0
		q.ids = append(q.ids[:i], q.ids[i+1:]...)
		if wasActive && len(q.ids) > 0 {
			return q.ids[0], true
		}
		return 0, false
	}
	return 0, false
}

// active возвращает id активного контроллера.
func (q *controlQueue) active() (uint64, bool) {
	if len(q.ids) == 0 {
		return 0, false
	}
	return q.ids[0], true
}

// waiting возвращает число ожидающих без учёта активного.
func (q *controlQueue) waiting() int {
	if len(q.ids) == 0 {
		return 0
	}
	return len(q.ids) - 1
}

func (q *controlQueue) len() int {
	return len(q.ids)
}
