package ws

import "testing"

func TestQueueFirstBecomesActive(t *testing.T) {
	var q controlQueue

	active, pos := q.add(1)
	if !active || pos != 0 {
		t.Fatalf("первый в очереди должен сразу получить управление: active=%v pos=%d", active, pos)
	}
	active, pos = q.add(2)
	if active || pos != 1 {
		t.Fatalf("второй должен ждать на позиции 1: active=%v pos=%d", active, pos)
	}
	if got, ok := q.active(); !ok || got != 1 {
		t.Fatalf("активным должен быть первый: %d %v", got, ok)
	}
	if q.waiting() != 1 {
		t.Fatalf("ожидающих должно быть 1, получили %d", q.waiting())
	}
}

func TestQueueAddIdempotent(t *testing.T) {
	var q controlQueue
	q.add(1)
	q.add(2)

	active, pos := q.add(2)
	if active || pos != 1 {
		t.Fatalf("повторная постановка не должна менять позицию: active=%v pos=%d", active, pos)
	}
	if q.len() != 2 {
		t.Fatalf("повторная постановка не должна удлинять очередь: %d", q.len())
	}
}

func TestQueuePromoteOnActiveLeave(t *testing.T) {
	var q controlQueue
	q.add(1)
	q.add(2)
	q.add(3)

	promoted, ok := q.remove(1)
	if !ok || promoted != 2 {
		t.Fatalf("после ухода активного управление должно перейти к следующему: %d %v", promoted, ok)
	}
	if got, _ := q.active(); got != 2 {
		t.Fatalf("активным должен стать второй, получили %d", got)
	}
}

func TestQueueRemoveWaiterNoPromotion(t *testing.T) {
	var q controlQueue
	q.add(1)
	q.add(2)
	q.add(3)

	if _, ok := q.remove(2); ok {
		t.Fatalf("уход ожидающего не должен менять активного")
	}
	if got, _ := q.active(); got != 1 {
		t.Fatalf("активный должен остаться прежним, получили %d", got)
	}
	if q.len() != 2 {
		t.Fatalf("длина очереди после ухода: %d", q.len())
	}
}

func TestQueueEmpty(t *testing.T) {
	var q controlQueue
	if _, ok := q.active(); ok {
		t.Fatalf("пустая очередь не имеет активного")
	}
	if _, ok := q.remove(7); ok {
		t.Fatalf("удаление из пустой очереди не должно продвигать")
	}
	if q.waiting() != 0 {
		t.Fatalf("ожидающих в пустой очереди: %d", q.waiting())
	}
}
