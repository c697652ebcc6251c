package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

const (
	natsMaxReconnects = 10
)

// NATSStore backs the broadcast store with a JetStream key-value bucket.
// The bucket is durable, so values survive process restarts, and watchers
// in other processes receive change notifications.
type NATSStore struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// NewNATSStore connects to NATS and opens (or creates) the broadcast bucket.
func NewNATSStore(ctx context.Context, natsURL, bucket string) (*NATSStore, error) {
	opts := []nats.Option{
		nats.MaxReconnects(natsMaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.KeyValue(ctx, bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "music bingo host/display broadcast channel",
			History:     1,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create broadcast bucket: %w", err)
		}
	}

	return &NATSStore{nc: nc, kv: kv}, nil
}

func (s *NATSStore) Put(ctx context.Context, key, value string) error {
	if _, err := s.kv.PutString(ctx, key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *NATSStore) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return string(entry.Value()), true, nil
}

func (s *NATSStore) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Watch streams updates for key. The watcher first delivers the key's
// current value if one exists, then live updates, until ctx is cancelled.
func (s *NATSStore) Watch(ctx context.Context, key string) (<-chan Update, error) {
	watcher, err := s.kv.Watch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", key, err)
	}

	out := make(chan Update, 8)
	go func() {
		defer close(out)
		defer watcher.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				// A nil entry is the watcher's initial-values-done marker.
				if entry == nil {
					continue
				}
				upd := Update{Key: entry.Key()}
				switch entry.Operation() {
				case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
					upd.Deleted = true
				default:
					upd.Value = string(entry.Value())
				}
				select {
				case out <- upd:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the underlying NATS connection.
func (s *NATSStore) Close() {
	s.nc.Close()
}
