package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "guildpulse"
)

// Ключи блокировок
const (
	RedisKeyLockScheduledRun = RedisNamespace + ":lock:analysis:scheduled"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanEntriesCreated — бот публикует сюда каждое новое событие (JSON LogEntry).
	RedisChanEntriesCreated = RedisNamespace + ":entries:created"
)
