package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	errs   []error
	closed bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return err
		}
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func newTestPublisher(channels ...*fakeChannel) (*RabbitPublisher, *int) {
	dials := 0
	p := &RabbitPublisher{exchange: "tablon.moderation", logger: zerolog.Nop()}
	p.dial = func() (*amqp.Connection, channel, error) {
		if dials >= len(channels) {
			return nil, nil, errors.New("dial refused")
		}
		ch := channels[dials]
		dials++
		return nil, ch, nil
	}
	return p, &dials
}

type sampleEvent struct {
	RequestID int64  `json:"request_id"`
	Nombre    string `json:"nombre"`
}

func TestRabbitPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p, dials := newTestPublisher(ch)

	err := p.Publish(context.Background(), "artist_request.approved", sampleEvent{RequestID: 4, Nombre: "Brisa"})
	require.NoError(t, err)
	assert.Equal(t, 1, *dials)

	require.Len(t, ch.sent, 1)
	got := ch.sent[0]
	assert.Equal(t, "tablon.moderation", got.exchange)
	assert.Equal(t, "artist_request.approved", got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.NotEmpty(t, got.msg.MessageId)
	assert.JSONEq(t, `{"request_id":4,"nombre":"Brisa"}`, string(got.msg.Body))
}

func TestRabbitPublisher_ReconnectsOnClosedChannel(t *testing.T) {
	first := &fakeChannel{errs: []error{amqp.ErrClosed}}
	second := &fakeChannel{}
	p, dials := newTestPublisher(first, second)

	require.NoError(t, p.Publish(context.Background(), "artist_request.rejected", sampleEvent{RequestID: 1}))
	assert.Equal(t, 2, *dials)
	assert.True(t, first.closed)
	assert.Empty(t, first.sent)
	assert.Len(t, second.sent, 1)
}

func TestRabbitPublisher_ReconnectFailure(t *testing.T) {
	first := &fakeChannel{errs: []error{amqp.ErrClosed}}
	p, _ := newTestPublisher(first)

	err := p.Publish(context.Background(), "artist_request.submitted", sampleEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial refused")
}

func TestRabbitPublisher_OtherErrorsAreWrapped(t *testing.T) {
	boom := errors.New("boom")
	p, dials := newTestPublisher(&fakeChannel{errs: []error{boom}})

	err := p.Publish(context.Background(), "artist_request.submitted", sampleEvent{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "artist_request.submitted")
	assert.Equal(t, 1, *dials)
}

func TestRabbitPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p, _ := newTestPublisher(ch)
	require.NoError(t, p.Publish(context.Background(), "k", sampleEvent{}))

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
	require.ErrorIs(t, p.Publish(context.Background(), "k", sampleEvent{}), ErrClosed)
}

func TestRabbitPublisher_UnencodableEvent(t *testing.T) {
	ch := &fakeChannel{}
	p, dials := newTestPublisher(ch)

	err := p.Publish(context.Background(), "k", map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Zero(t, *dials)
}

func TestNewRabbitPublisher_RequiresSettings(t *testing.T) {
	_, err := NewRabbitPublisher("", "x", zerolog.Nop())
	require.Error(t, err)
	_, err = NewRabbitPublisher("amqp://localhost", "", zerolog.Nop())
	require.Error(t, err)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf).Level(zerolog.DebugLevel))

	require.NoError(t, p.Publish(context.Background(), "artist_request.submitted", sampleEvent{RequestID: 9, Nombre: "Sol"}))
	require.NoError(t, p.Close())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "artist_request.submitted", line["routing_key"])
	assert.Equal(t, map[string]any{"request_id": float64(9), "nombre": "Sol"}, line["event"])
}
