package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/signal/pkg/signal"
)

// ClusterConfig configures a NATS-backed bridge between buses in different
// processes.
type ClusterConfig struct {
	// URL is the NATS server URL, e.g. "nats://127.0.0.1:4222".
	// Default: nats.DefaultURL.
	URL string

	// Prefix is prepended to all subjects. Default: "signal".
	Prefix string

	// Name is an optional NATS connection name.
	Name string

	// Topics restricts which remote topics are republished locally.
	// Empty means all.
	Topics []string

	// Logger defaults to signal.NewDefaultLogger().
	Logger signal.Logger
}

// envelope is the wire format. Headers carry the trace context; Origin
// identifies the publishing bridge so it can ignore its own messages when
// the server echoes them back.
type envelope struct {
	Origin  string            `json:"origin"`
	Topic   string            `json:"topic"`
	Headers map[string]string `json:"headers,omitempty"`
	Payload json.RawMessage   `json:"payload"`
}

// ClusterBridge connects a local Bus to its peers over NATS.
//
// Publishing goes through the bridge: Publish delivers to local subscribers
// and forwards to <prefix>.pub.<topic>, where every peer bridge republishes
// it on its own bus. Remote messages arriving here are republished locally
// only, so they cannot loop back out.
type ClusterBridge[T any] struct {
	bus    *Bus[T]
	nc     *nats.Conn
	sub    *nats.Subscription
	prefix string
	origin string
	allow  map[string]bool
	logger signal.Logger
	tracer trace.Tracer
	closed atomic.Bool
}

// NewClusterBridge connects to NATS and starts republishing remote messages
// onto b.
func NewClusterBridge[T any](b *Bus[T], cfg ClusterConfig) (*ClusterBridge[T], error) {
	if b == nil {
		return nil, fmt.Errorf("bus cannot be nil")
	}

	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "signal"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = signal.NewDefaultLogger()
	}

	var connOpts []nats.Option
	if cfg.Name != "" {
		connOpts = append(connOpts, nats.Name(cfg.Name))
	}
	nc, err := nats.Connect(url, connOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	var allow map[string]bool
	if len(cfg.Topics) > 0 {
		allow = make(map[string]bool, len(cfg.Topics))
		for _, topic := range cfg.Topics {
			allow[topic] = true
		}
	}

	cb := &ClusterBridge[T]{
		bus:    b,
		nc:     nc,
		prefix: prefix,
		origin: uuid.New().String(),
		allow:  allow,
		logger: logger,
		tracer: otel.Tracer("github.com/fluxorio/signal/pkg/bus"),
	}

	sub, err := nc.Subscribe(prefix+".pub.>", cb.onRemote)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s.pub.>: %w", prefix, err)
	}
	cb.sub = sub

	return cb, nil
}

// Publish delivers v to local subscribers of topic and forwards it to every
// peer bridge.
func (cb *ClusterBridge[T]) Publish(topic string, v T) error {
	return cb.PublishContext(context.Background(), topic, v)
}

// PublishContext is Publish with a caller-supplied context for trace
// propagation; the forwarded message carries the active span's context.
func (cb *ClusterBridge[T]) PublishContext(ctx context.Context, topic string, v T) error {
	if cb.closed.Load() {
		return fmt.Errorf("cluster bridge closed")
	}
	if err := ValidateTopic(topic); err != nil {
		return err
	}

	ctx, span := cb.tracer.Start(ctx, "signal.cluster.forward",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("signal.topic", topic),
			attribute.String("messaging.system", "nats"),
		))
	defer span.End()

	if err := cb.bus.Publish(topic, v); err != nil {
		span.RecordError(err)
		return err
	}

	payload, err := encodePayload(v)
	if err != nil {
		span.RecordError(err)
		return err
	}

	env := envelope{
		Origin:  cb.origin,
		Topic:   topic,
		Headers: make(map[string]string),
		Payload: payload,
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(env.Headers))

	data, err := json.Marshal(env)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := cb.nc.Publish(cb.subject(topic), data); err != nil {
		span.RecordError(err)
		return fmt.Errorf("forward to nats: %w", err)
	}
	return nil
}

// Flush waits until all forwarded messages have been processed by the
// server.
func (cb *ClusterBridge[T]) Flush() error {
	return cb.nc.Flush()
}

// Close stops republishing and closes the NATS connection. Local
// subscriptions on the bus are untouched.
func (cb *ClusterBridge[T]) Close() error {
	if !cb.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := cb.sub.Unsubscribe()
	cb.nc.Close()
	return err
}

func (cb *ClusterBridge[T]) subject(topic string) string {
	return cb.prefix + ".pub." + topic
}

// onRemote republishes a peer's message on the local bus.
func (cb *ClusterBridge[T]) onRemote(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		cb.logger.Warnf("cluster bridge: dropping malformed message on %s: %v", msg.Subject, err)
		return
	}
	if env.Origin == cb.origin {
		// Our own publish echoed back by the server.
		return
	}
	if cb.allow != nil && !cb.allow[env.Topic] {
		return
	}

	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.MapCarrier(env.Headers))
	_, span := cb.tracer.Start(ctx, "signal.cluster.receive",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("signal.topic", env.Topic),
			attribute.String("messaging.system", "nats"),
		))
	defer span.End()

	var v T
	if err := decodePayload(env.Payload, &v); err != nil {
		span.RecordError(err)
		cb.logger.Warnf("cluster bridge: dropping undecodable payload on topic %s: %v", env.Topic, err)
		return
	}
	if err := cb.bus.Publish(env.Topic, v); err != nil {
		span.RecordError(err)
		cb.logger.Warnf("cluster bridge: local publish on topic %s failed: %v", env.Topic, err)
	}
}

// encodePayload encodes a payload to JSON (fail-fast).
func encodePayload(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// decodePayload decodes JSON payload bytes (fail-fast).
func decodePayload(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("decode payload: empty data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
