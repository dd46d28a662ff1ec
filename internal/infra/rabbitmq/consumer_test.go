package rabbitmq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestCalculateBackoff(t *testing.T) {
	c := &Consumer{baseDelay: time.Second}

	assert.Equal(t, time.Second, c.calculateBackoff(0))
	assert.Equal(t, time.Second, c.calculateBackoff(1))
	assert.Equal(t, 2*time.Second, c.calculateBackoff(2))
	assert.Equal(t, 8*time.Second, c.calculateBackoff(4))
	assert.Equal(t, maxBackoff, c.calculateBackoff(7))
	assert.Equal(t, maxBackoff, c.calculateBackoff(200))
}

func TestGetAttemptFromHeaders(t *testing.T) {
	c := &Consumer{}

	assert.Equal(t, 1, c.getAttemptFromHeaders(amqp.Delivery{}))
	assert.Equal(t, 1, c.getAttemptFromHeaders(amqp.Delivery{Headers: amqp.Table{"other": "x"}}))

	d := amqp.Delivery{Headers: amqp.Table{
		"x-death": []interface{}{amqp.Table{}, amqp.Table{}, amqp.Table{}},
	}}
	assert.Equal(t, 3, c.getAttemptFromHeaders(d))
}
