package kafka

// Topics событий приюта.
const (
	TopicDonationEvents  = "straycare.donation.events"
	TopicDeadLetterQueue = "straycare.donation.dlq"
)

// Заголовки Kafka-сообщений.
const (
	HeaderEventType     = "x-event-type"
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)
