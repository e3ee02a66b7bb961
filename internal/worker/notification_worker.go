package worker

import (
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/service"
)

// StartNotificationWorker registers mail handlers and, when a Redis
// publisher is given, forwards every event to the realtime channel.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, feed *events.RedisPublisher) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	feed.Register(dispatcher)
}
