package kafka

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

const (
	TopicTicketCalled = "queue.ticket.called"
	TopicTicketReady  = "queue.ticket.ready"
	TopicQueueUpdated = "queue.updated"
)

// AllTopics lists every topic the service produces to.
var AllTopics = []string{TopicTicketCalled, TopicTicketReady, TopicQueueUpdated}

// TopicFor maps an event type onto its topic.
func TopicFor(t models.QueueEventType) (string, bool) {
	switch t {
	case models.EventTicketCalled:
		return TopicTicketCalled, true
	case models.EventTicketReady:
		return TopicTicketReady, true
	case models.EventQueueUpdated:
		return TopicQueueUpdated, true
	}
	return "", false
}

// EnsureTopicsExist creates Kafka topics if they don't already exist
func EnsureTopicsExist(brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err = controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		})
		switch {
		case err == nil:
			log.LogKafka("TOPIC", topic, "created")
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.Debug("KAFKA", fmt.Sprintf("Topic %s already exists", topic))
		default:
			// Keep going so one bad topic does not block the rest.
			log.Error("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
		}
	}
	return nil
}
