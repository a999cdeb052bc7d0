// Package notify — реализации Notifier: доставка событий движка наружу.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reviewkit/engine/internal/domain/usecase"
)

var (
	_ usecase.Notifier = (*LogNotifier)(nil)
	_ usecase.Notifier = (*RedisNotifier)(nil)
	_ usecase.Notifier = (*Recorder)(nil)
	_ usecase.Notifier = (Multi)(nil)
)

// LogNotifier пишет события в структурированный лог.
type LogNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, event usecase.Event) {
	n.log.Infow("event",
		"name", event.Name,
		"pr_id", event.PullRequestID,
		"actor_id", event.ActorID,
		"payload", event.Payload,
	)
}

// RedisNotifier публикует события JSON-сообщениями в канал pub/sub.
// Доставка — забота подписчиков; ошибка публикации не откатывает операцию,
// она только логируется.
type RedisNotifier struct {
	rdb     redis.UniversalClient
	channel string
	log     *zap.SugaredLogger
}

func NewRedisNotifier(rdb redis.UniversalClient, channel string, log *zap.SugaredLogger) *RedisNotifier {
	if channel == "" {
		channel = "reviewkit:events"
	}
	return &RedisNotifier{rdb: rdb, channel: channel, log: log}
}

func (n *RedisNotifier) Notify(ctx context.Context, event usecase.Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		n.log.Errorw("marshal event", "name", event.Name, "error", err)
		return
	}
	if err := n.rdb.Publish(ctx, n.channel, raw).Err(); err != nil {
		n.log.Errorw("publish event", "name", event.Name, "error", err)
	}
}

// Recorder накапливает события в памяти; используется в тестах.
type Recorder struct {
	mu     sync.Mutex
	events []usecase.Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(ctx context.Context, event usecase.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []usecase.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]usecase.Event(nil), r.events...)
}

func (r *Recorder) Last() (usecase.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return usecase.Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// Multi рассылает событие каждому из вложенных Notifier по порядку.
type Multi []usecase.Notifier

func (m Multi) Notify(ctx context.Context, event usecase.Event) {
	for _, n := range m {
		n.Notify(ctx, event)
	}
}
