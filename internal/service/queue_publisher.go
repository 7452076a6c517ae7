// Package queue_publisher provides functions to publish domain events to RabbitMQ.
// Errors are logged and returned so callers can ignore failures without
// interrupting the main request flow: a missed fanout delivery is repaired
// by the next full resync, never by blocking a reservation write.
package queue_publisher

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    q "github.com/iliyamo/parking-spot-reservation/internal/queue"
)

// PublishSpotChanged publishes a SpotChangedEvent to the spot.status fanout
// exchange.  The function never panics; any error is logged and returned.
func PublishSpotChanged(ctx context.Context, event q.SpotChangedEvent) error {
    conn, err := amqp.Dial(q.BrokerURL())
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the exchange exists (idempotent).  Durable so the topology
    // survives broker restarts; the messages themselves are transient
    // because the projection is rebuilt from the database on reconnect.
    if err := ch.ExchangeDeclare(q.ExchangeName, "fanout", true, false, false, false, nil); err != nil {
        log.Printf("rabbitmq: exchange declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType: "application/json",
        Timestamp:   time.Now().UTC(),
        Body:        body,
    }

    if err := ch.PublishWithContext(ctx,
        q.ExchangeName, // fanout exchange
        "",             // routing key ignored by fanout
        false,          // mandatory
        false,          // immediate
        pub,
    ); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }

    return nil
}
